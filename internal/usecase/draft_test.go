package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"places-bot/internal/domain"
)

func str(s string) *string { return &s }

func fullDraft() Draft {
	vibe := domain.VibeLively
	cat := domain.CategoryBar
	d := Draft{
		Name:     str("Corner Bar"),
		Vibe:     &vibe,
		Category: &cat,
		Address:  str("Main St, 12"),
		Review:   str("nice place"),
	}
	d.SetLocation(55.75, 37.62)
	return d
}

func TestBuildPlace_HappyPath(t *testing.T) {
	d := fullDraft()
	p, err := d.BuildPlace()
	require.NoError(t, err)
	require.Equal(t, "Corner Bar", p.Name)
	require.Equal(t, domain.VibeLively, p.Vibe)
	require.Equal(t, domain.CategoryBar, p.Category)
	require.Equal(t, 55.75, p.Latitude)
	require.Equal(t, 37.62, p.Longitude)
	require.Equal(t, "nice place", p.Review)

	pt, ok := p.Geometry.Resolve()
	require.True(t, ok)
	require.Equal(t, domain.GeoPoint{Lat: 55.75, Lon: 37.62}, pt)
}

func TestBuildPlace_PhotoOptional(t *testing.T) {
	d := fullDraft()
	p, err := d.BuildPlace()
	require.NoError(t, err)
	require.Empty(t, p.PhotoURL)

	d.PhotoURL = str("https://bucket.s3.eu-west-1.amazonaws.com/corner_bar.jpg")
	p, err = d.BuildPlace()
	require.NoError(t, err)
	require.Equal(t, "https://bucket.s3.eu-west-1.amazonaws.com/corner_bar.jpg", p.PhotoURL)
}

func TestBuildPlace_ReportsAllMissingFields(t *testing.T) {
	var d Draft
	_, err := d.BuildPlace()
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrorInvalidInput, e.Code)
	require.Contains(t, err.Error(), "name")
	require.Contains(t, err.Error(), "vibe")
	require.Contains(t, err.Error(), "type")
	require.Contains(t, err.Error(), "address")
	require.Contains(t, err.Error(), "location")
	require.Contains(t, err.Error(), "review")
}

func TestBuildUpdate_WithoutTarget(t *testing.T) {
	d := fullDraft()
	_, err := d.BuildUpdate()
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrorContract, e.Code)
}

func TestBuildUpdate_OnlySuppliedFields(t *testing.T) {
	orig := domain.Place{ID: "7", Name: "Old Name", Review: "old review"}
	d := Draft{
		TargetID: "7",
		Original: &orig,
		Name:     str("New Name"),
	}

	upd, err := d.BuildUpdate()
	require.NoError(t, err)
	require.NotNil(t, upd.Name)
	require.Equal(t, "New Name", *upd.Name)
	require.Nil(t, upd.Vibe)
	require.Nil(t, upd.Category)
	require.Nil(t, upd.Address)
	require.Nil(t, upd.Latitude)
	require.Nil(t, upd.Geometry)
	require.Nil(t, upd.PhotoURL)
}

func TestBuildUpdate_ReviewAlwaysResubmitted(t *testing.T) {
	orig := domain.Place{ID: "7", Review: "kept review"}
	d := Draft{TargetID: "7", Original: &orig}

	upd, err := d.BuildUpdate()
	require.NoError(t, err)
	require.NotNil(t, upd.Review)
	require.Equal(t, "kept review", *upd.Review)

	d.Review = str("fresh review")
	upd, err = d.BuildUpdate()
	require.NoError(t, err)
	require.Equal(t, "fresh review", *upd.Review)
}

func TestBuildUpdate_LocationSetsGeometry(t *testing.T) {
	orig := domain.Place{ID: "7"}
	d := Draft{TargetID: "7", Original: &orig}
	d.SetLocation(55.75, 37.62)

	upd, err := d.BuildUpdate()
	require.NoError(t, err)
	require.NotNil(t, upd.Latitude)
	require.NotNil(t, upd.Longitude)
	require.NotNil(t, upd.Geometry)

	pt, ok := upd.Geometry.Resolve()
	require.True(t, ok)
	require.Equal(t, domain.GeoPoint{Lat: 55.75, Lon: 37.62}, pt)
}

func TestMerged_OverlaysDraftOnOriginal(t *testing.T) {
	orig := domain.Place{ID: "7", Name: "Old Name", Address: "Old St, 1", Review: "old review"}
	d := Draft{
		TargetID: "7",
		Original: &orig,
		Name:     str("New Name"),
	}

	merged := d.Merged()
	require.Equal(t, "7", merged.ID)
	require.Equal(t, "New Name", merged.Name)
	require.Equal(t, "Old St, 1", merged.Address)
	require.Equal(t, "old review", merged.Review)
}
