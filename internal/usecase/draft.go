package usecase

import (
	"fmt"
	"strings"

	"places-bot/internal/domain"
)

// Draft accumulates field values for one in-progress create or edit
// conversation. A nil field was never supplied. TargetID and Original
// are set only in the edit flow, after the target record was fetched.
type Draft struct {
	Name      *string
	Vibe      *domain.Vibe
	Category  *domain.Category
	Address   *string
	Latitude  *float64
	Longitude *float64
	PhotoURL  *string
	Review    *string

	TargetID string
	Original *domain.Place
}

// SetLocation captures coordinates as floats at the moment of arrival.
func (d *Draft) SetLocation(lat, lon float64) {
	d.Latitude = &lat
	d.Longitude = &lon
}

// BuildPlace validates the draft for a create persist and assembles the
// record. The photo is optional and omitted when absent; every other
// field is required. The geometry is derived from the captured
// coordinates so the two can never disagree.
func (d *Draft) BuildPlace() (domain.Place, error) {
	var missing []string
	if d.Name == nil {
		missing = append(missing, "name")
	}
	if d.Vibe == nil {
		missing = append(missing, "vibe")
	}
	if d.Category == nil {
		missing = append(missing, "type")
	}
	if d.Address == nil {
		missing = append(missing, "address")
	}
	if d.Latitude == nil || d.Longitude == nil {
		missing = append(missing, "location")
	}
	if d.Review == nil {
		missing = append(missing, "review")
	}
	if len(missing) > 0 {
		return domain.Place{}, newError(ErrorInvalidInput, "incomplete_draft",
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	p := domain.Place{
		Name:      *d.Name,
		Vibe:      *d.Vibe,
		Category:  *d.Category,
		Address:   *d.Address,
		Longitude: *d.Longitude,
		Latitude:  *d.Latitude,
		Geometry:  domain.PointGeometry(*d.Latitude, *d.Longitude),
		Review:    *d.Review,
	}
	if d.PhotoURL != nil {
		p.PhotoURL = *d.PhotoURL
	}
	return p, nil
}

// BuildUpdate assembles the partial update for an edit persist. Only
// supplied fields are included, so skipped fields keep their stored
// values; the review is always resubmitted, carrying the stored text
// when the step was skipped. A draft without a fetched target is a
// contract violation.
func (d *Draft) BuildUpdate() (domain.PlaceUpdate, error) {
	if d.TargetID == "" || d.Original == nil {
		return domain.PlaceUpdate{}, newError(ErrorContract, "edit_without_target", nil)
	}

	upd := domain.PlaceUpdate{
		Name:     d.Name,
		Vibe:     d.Vibe,
		Category: d.Category,
		Address:  d.Address,
		PhotoURL: d.PhotoURL,
	}
	if d.Latitude != nil && d.Longitude != nil {
		upd.Latitude = d.Latitude
		upd.Longitude = d.Longitude
		g := domain.PointGeometry(*d.Latitude, *d.Longitude)
		upd.Geometry = &g
	}

	review := d.Original.Review
	if d.Review != nil {
		review = *d.Review
	}
	upd.Review = &review
	return upd, nil
}

// Merged overlays the drafted fields on the original record, for
// display after an edit persists.
func (d *Draft) Merged() domain.Place {
	var p domain.Place
	if d.Original != nil {
		p = *d.Original
	}
	if d.Name != nil {
		p.Name = *d.Name
	}
	if d.Vibe != nil {
		p.Vibe = *d.Vibe
	}
	if d.Category != nil {
		p.Category = *d.Category
	}
	if d.Address != nil {
		p.Address = *d.Address
	}
	if d.Latitude != nil && d.Longitude != nil {
		p.Latitude = *d.Latitude
		p.Longitude = *d.Longitude
		p.Geometry = domain.PointGeometry(*d.Latitude, *d.Longitude)
	}
	if d.PhotoURL != nil {
		p.PhotoURL = *d.PhotoURL
	}
	if d.Review != nil {
		p.Review = *d.Review
	}
	return p
}
