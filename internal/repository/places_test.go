package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"places-bot/internal/domain"
)

type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	getErr    error
	putErr    error
	scanOuts  []*dynamodb.ScanOutput
	scanErr   error
	updateOut *dynamodb.UpdateItemOutput
	updateErr error

	lastGetInput    *dynamodb.GetItemInput
	lastPutInput    *dynamodb.PutItemInput
	scanInputs      []*dynamodb.ScanInput
	lastUpdateInput *dynamodb.UpdateItemInput
	updateInputs    []*dynamodb.UpdateItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanInputs = append(f.scanInputs, in)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := f.scanOuts[0]
	f.scanOuts = f.scanOuts[1:]
	return out, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateInput = in
	f.updateInputs = append(f.updateInputs, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateOut != nil {
		return f.updateOut, nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func makePlaceItem(id int, name, review string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":        &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
		"name":      &types.AttributeValueMemberS{Value: name},
		"vibe":      &types.AttributeValueMemberS{Value: "lively"},
		"type":      &types.AttributeValueMemberS{Value: "bar"},
		"address":   &types.AttributeValueMemberS{Value: "Main St, 12"},
		"latitude":  &types.AttributeValueMemberN{Value: "55.75"},
		"longitude": &types.AttributeValueMemberN{Value: "37.62"},
		"geometry": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"lat": &types.AttributeValueMemberN{Value: "55.75"},
			"lon": &types.AttributeValueMemberN{Value: "37.62"},
		}},
		"revew": &types.AttributeValueMemberS{Value: review},
	}
}

func makeLegacyItem(id, name, geometry string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":       &types.AttributeValueMemberS{Value: id},
		"name":     &types.AttributeValueMemberS{Value: name},
		"vibe":     &types.AttributeValueMemberS{Value: "local"},
		"type":     &types.AttributeValueMemberS{Value: "pub"},
		"address":  &types.AttributeValueMemberS{Value: "Old St, 1"},
		"geometry": &types.AttributeValueMemberS{Value: geometry},
		"revew":    &types.AttributeValueMemberS{Value: "still good"},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "places", "places-legacy")
	require.NoError(t, err)
	return c
}

func TestListPlaces_HappyPath(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{
			makePlaceItem(1, "Corner Bar", "nice place"),
			makePlaceItem(2, "Side Pub", "ok"),
		}},
	}}
	c := mustNewClient(t, db)

	places, err := c.ListPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)
	require.Equal(t, "1", places[0].ID)
	require.Equal(t, "Corner Bar", places[0].Name)
	require.Equal(t, domain.VibeLively, places[0].Vibe)
	require.Equal(t, "nice place", places[0].Review)

	pt, ok := places[0].Geometry.Resolve()
	require.True(t, ok)
	require.Equal(t, domain.GeoPoint{Lat: 55.75, Lon: 37.62}, pt)
}

func TestListPlaces_FollowsPagination(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{
			Items:            []map[string]types.AttributeValue{makePlaceItem(1, "First", "a")},
			LastEvaluatedKey: placeKey(1),
		},
		{Items: []map[string]types.AttributeValue{makePlaceItem(2, "Second", "b")}},
	}}
	c := mustNewClient(t, db)

	places, err := c.ListPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)
	require.Len(t, db.scanInputs, 2)
	require.NotNil(t, db.scanInputs[1].ExclusiveStartKey)
}

func TestListPlaces_SkipsCounterItem(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{
			{
				"id":      &types.AttributeValueMemberN{Value: "0"},
				"last_id": &types.AttributeValueMemberN{Value: "17"},
			},
			makePlaceItem(1, "Corner Bar", "nice"),
		}},
	}}
	c := mustNewClient(t, db)

	places, err := c.ListPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, "1", places[0].ID)
}

func TestListPlaces_ScanError(t *testing.T) {
	db := &fakeDynamo{scanErr: errors.New("throttled")}
	c := mustNewClient(t, db)
	_, err := c.ListPlaces(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ListPlaces")
}

func TestListLegacyPlaces_ResolvesWKT(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{
			makeLegacyItem("old-1", "Old Spot", "POINT(37.63 55.76)"),
		}},
	}}
	c := mustNewClient(t, db)

	places, err := c.ListLegacyPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, "old-1", places[0].ID)
	require.Equal(t, 55.76, places[0].Latitude)
	require.Equal(t, 37.63, places[0].Longitude)
	require.Equal(t, "places-legacy", *db.scanInputs[0].TableName)
}

func TestListLegacyPlaces_KeepsUnparseableGeometry(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{
			makeLegacyItem("old-1", "Broken", "POINT(garbage)"),
		}},
	}}
	c := mustNewClient(t, db)

	places, err := c.ListLegacyPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 1)

	_, ok := places[0].Geometry.Resolve()
	require.False(t, ok)
}

func TestListLegacyPlaces_NoLegacyTable(t *testing.T) {
	c, err := New(&fakeDynamo{}, "places", "")
	require.NoError(t, err)

	places, err := c.ListLegacyPlaces(context.Background())
	require.NoError(t, err)
	require.Nil(t, places)
}

func TestGetPlace_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makePlaceItem(7, "Corner Bar", "nice")}}
	c := mustNewClient(t, db)

	p, err := c.GetPlace(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "7", p.ID)
	require.Equal(t, "Corner Bar", p.Name)
	require.NotNil(t, db.lastGetInput)
	key := db.lastGetInput.Key["id"].(*types.AttributeValueMemberN)
	require.Equal(t, "7", key.Value)
}

func TestGetPlace_NotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, err := c.GetPlace(context.Background(), "7")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
}

func TestGetPlace_NonNumericID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.GetPlace(context.Background(), "old-1")
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
}

func TestInsertPlace_AssignsCounterID(t *testing.T) {
	db := &fakeDynamo{
		updateOut: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
			"last_id": &types.AttributeValueMemberN{Value: "8"},
		}},
	}
	c := mustNewClient(t, db)

	id, err := c.InsertPlace(context.Background(), domain.Place{
		Name: "Corner Bar", Vibe: domain.VibeLively, Category: domain.CategoryBar,
		Address: "Main St, 12", Latitude: 55.75, Longitude: 37.62, Review: "nice place",
	})
	require.NoError(t, err)
	require.Equal(t, "8", id)

	// Counter increment targets the reserved key.
	counterKey := db.lastUpdateInput.Key["id"].(*types.AttributeValueMemberN)
	require.Equal(t, "0", counterKey.Value)

	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "attribute_not_exists(id)", *db.lastPutInput.ConditionExpression)
	item := db.lastPutInput.Item
	require.Equal(t, "8", item["id"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "nice place", item["revew"].(*types.AttributeValueMemberS).Value)
}

func TestInsertPlace_CounterError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("throttled")}
	c := mustNewClient(t, db)
	_, err := c.InsertPlace(context.Background(), domain.Place{Name: "x"})
	require.Error(t, err)
	require.Nil(t, db.lastPutInput)
}

func TestUpdatePlace_OnlySuppliedFields(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	name := "New Name"
	review := "new review"
	err := c.UpdatePlace(context.Background(), "7", domain.PlaceUpdate{Name: &name, Review: &review})
	require.NoError(t, err)

	in := db.lastUpdateInput
	require.Equal(t, "7", in.Key["id"].(*types.AttributeValueMemberN).Value)
	expr := *in.UpdateExpression
	require.Contains(t, expr, "#name = :name")
	require.Contains(t, expr, "#revew = :revew")
	require.NotContains(t, expr, "vibe")
	require.NotContains(t, expr, "geometry")
	require.Equal(t, "New Name", in.ExpressionAttributeValues[":name"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "new review", in.ExpressionAttributeValues[":revew"].(*types.AttributeValueMemberS).Value)
}

func TestUpdatePlace_LocationUpdatesGeometryToo(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	lat, lon := 55.80, 37.70
	err := c.UpdatePlace(context.Background(), "7", domain.PlaceUpdate{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)

	expr := *db.lastUpdateInput.UpdateExpression
	require.Contains(t, expr, "#latitude = :latitude")
	require.Contains(t, expr, "#longitude = :longitude")
	require.Contains(t, expr, "#geometry = :geometry")
}

func TestUpdatePlace_EmptyUpdateIsNoOp(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.UpdatePlace(context.Background(), "7", domain.PlaceUpdate{})
	require.NoError(t, err)
	require.Nil(t, db.lastUpdateInput)
}

func TestUpdatePlace_MissingRecord(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	c := mustNewClient(t, db)

	name := "x"
	err := c.UpdatePlace(context.Background(), "7", domain.PlaceUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrPlaceNotFound)
}
