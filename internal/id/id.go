// Package id generates and checks TypeID-based entity identifiers.
//
// Identifiers are K-sortable (UUIDv7 based) strings of the form
// "prefix_suffix", e.g. "ord_01h2xcejqtf2nbrexx3vqjhp41".
package id

import (
	"strings"

	"github.com/go-faster/errors"
	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an identifier.
type Prefix string

// Entity prefixes.
const (
	Order         Prefix = "ord"
	Coupon        Prefix = "cpn"
	CouponUsage   Prefix = "cpu"
	Testimonial   Prefix = "tst"
	Customization Prefix = "cus"
	Download      Prefix = "dl"
	Enrollment    Prefix = "enr"
	Notification  Prefix = "ntf"
	Task          Prefix = "task"
	User          Prefix = "usr"
	Website       Prefix = "web"
	Software      Prefix = "sw"
	Course        Prefix = "crs"
)

// New returns a fresh identifier with the given prefix. It panics on an
// invalid prefix, which is a programming error.
func New(p Prefix) string {
	tid, err := typeid.Generate(string(p))
	if err != nil {
		panic("id: invalid prefix " + string(p) + ": " + err.Error())
	}
	return tid.String()
}

// Suffix returns a fresh identifier without its prefix, upper-cased. It is
// used where a human-readable token is needed (order numbers).
func Suffix(p Prefix) string {
	s := New(p)
	return strings.ToUpper(strings.TrimPrefix(s, string(p)+"_"))
}

// Check validates that s is a well-formed identifier carrying prefix p.
func Check(s string, p Prefix) error {
	if s == "" {
		return errors.New("empty id")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return errors.Wrapf(err, "parse id %q", s)
	}
	if tid.Prefix() != string(p) {
		return errors.Errorf("id %q: expected prefix %q", s, p)
	}
	return nil
}
