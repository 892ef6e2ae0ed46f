package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/errorf"
	"parley.dev/pkg/utils/units"
)

// RelayInformation is the NIP-11 relay information document.
type RelayInformation struct {
	Name           string           `json:"name,omitempty"`
	Description    string           `json:"description,omitempty"`
	Pubkey         string           `json:"pubkey,omitempty"`
	Contact        string           `json:"contact,omitempty"`
	SupportedNIPs  []int            `json:"supported_nips,omitempty"`
	Software       string           `json:"software,omitempty"`
	Version        string           `json:"version,omitempty"`
	Icon           string           `json:"icon,omitempty"`
	PaymentsURL    string           `json:"payments_url,omitempty"`
	RelayCountries []string         `json:"relay_countries,omitempty"`
	LanguageTags   []string         `json:"language_tags,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	PostingPolicy  string           `json:"posting_policy,omitempty"`
	Limitation     *RelayLimitation `json:"limitation,omitempty"`
}

// RelayLimitation is the NIP-11 limitation block.
type RelayLimitation struct {
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MaxSubidLength   int  `json:"max_subid_length,omitempty"`
	MaxEventTags     int  `json:"max_event_tags,omitempty"`
	MaxContentLength int  `json:"max_content_length,omitempty"`
	MinPowDifficulty int  `json:"min_pow_difficulty,omitempty"`
	AuthRequired     bool `json:"auth_required,omitempty"`
	PaymentRequired  bool `json:"payment_required,omitempty"`
	RestrictedWrites bool `json:"restricted_writes,omitempty"`
}

// Document fetches the relay's NIP-11 information document over HTTP with
// the application/nostr+json accept header.
func (r *Client) Document(c context.T) (info *RelayInformation, err error) {
	httpURL := r.URL
	switch {
	case strings.HasPrefix(httpURL, "wss://"):
		httpURL = "https://" + httpURL[6:]
	case strings.HasPrefix(httpURL, "ws://"):
		httpURL = "http://" + httpURL[5:]
	}
	ctx, cancel := context.Timeout(c, 10*time.Second)
	defer cancel()
	var req *http.Request
	if req, err = http.NewRequestWithContext(
		ctx, http.MethodGet, httpURL, nil,
	); chk.E(err) {
		return
	}
	req.Header.Set("Accept", "application/nostr+json")
	var resp *http.Response
	if resp, err = http.DefaultClient.Do(req); err != nil {
		return nil, errorf.D(
			"{%s} failed to fetch relay info: %v", r.URL, err,
		)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorf.D(
			"{%s} relay info request returned %d", r.URL, resp.StatusCode,
		)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(units.MiB)))
	if chk.D(err) {
		return
	}
	info = &RelayInformation{}
	if err = json.Unmarshal(body, info); err != nil {
		return nil, errorf.D(
			"{%s} invalid relay info document: %v", r.URL, err,
		)
	}
	return
}
