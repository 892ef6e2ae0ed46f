package event

import (
	"parley.dev/pkg/crypto/p256k"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/errorf"
)

// Sign computes the ID over the canonical form and signs it. The caller sets
// CreatedAt, Kind, Tags and Content first; Pubkey, ID and Sig are populated
// here.
func (ev *E) Sign(keys signer.I) (err error) {
	ev.Pubkey = keys.Pub()
	ev.ID = ev.GetIDBytes()
	if ev.Sig, err = keys.Sign(ev.ID); chk.E(err) {
		return
	}
	return
}

// Verify checks that the ID matches the canonical hash and that the
// signature validates under the event's pubkey.
func (ev *E) Verify() (valid bool, err error) {
	if !ev.CheckID() {
		err = errorf.D(
			"event id does not match canonical hash: %s", ev.IDString(),
		)
		return
	}
	keys := p256k.Signer{}
	if err = keys.InitPub(ev.Pubkey); err != nil {
		return
	}
	if valid, err = keys.Verify(ev.ID, ev.Sig); err != nil {
		return
	}
	return
}
