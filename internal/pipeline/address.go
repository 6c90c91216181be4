package pipeline

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"

	"github.com/proplens/proplens/internal/jsonld"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/pkg/geocode"
)

// ErrInvalidAddress is returned by Run for an address that cannot identify
// a property.
var ErrInvalidAddress = eris.New("pipeline: invalid address")

// ValidateAddress checks the fields every lookup depends on.
func ValidateAddress(addr model.ResolvedAddress) error {
	err := validation.ValidateStruct(&addr,
		validation.Field(&addr.Query, validation.Required),
		validation.Field(&addr.DisplayName, validation.Required),
		validation.Field(&addr.Lat, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&addr.Lon, validation.Min(-180.0), validation.Max(180.0)),
	)
	if err != nil {
		return eris.Wrap(ErrInvalidAddress, err.Error())
	}
	return nil
}

// blockAddress renders the address carried by a listing object, which is
// either plain text or a schema.org PostalAddress.
func blockAddress(n jsonld.Node) string {
	a := n.Get("address")
	if s, ok := a.Str(); ok {
		return strings.TrimSpace(s)
	}
	if !a.IsObject() {
		return ""
	}
	var parts []string
	for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
		if s := strings.TrimSpace(a.Get(key).Text()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// addressMatch scores how well a listing's own address matches the
// subject, taking the better of the query and the display name.
func addressMatch(addr model.ResolvedAddress, listing string) float64 {
	if listing == "" {
		return 0
	}
	return max(geocode.Similarity(addr.Query, listing), geocode.Similarity(addr.DisplayName, listing))
}
