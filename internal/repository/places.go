package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"places-bot/internal/domain"
)

// counterID is the reserved key of the id-counter item in the places
// table. Real place ids start at 1, so the counter never collides with
// a record.
const counterID = 0

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Client wraps the two place tables: the current one with structured
// geometry and the legacy one whose rows carry WKT geometry text.
type Client struct {
	api         dynamodbAPI
	tableName   string
	legacyTable string
}

// New creates a new repository Client. legacyTable may be empty when no
// legacy data exists.
func New(api dynamodbAPI, tableName, legacyTable string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, legacyTable: legacyTable}, nil
}

// placeRecord is the current-table row shape. The review attribute keeps
// its historical misspelled name; every stored row carries it.
type placeRecord struct {
	ID        int            `dynamodbav:"id"`
	Name      string         `dynamodbav:"name"`
	Vibe      string         `dynamodbav:"vibe"`
	Type      string         `dynamodbav:"type"`
	Address   string         `dynamodbav:"address"`
	Longitude float64        `dynamodbav:"longitude"`
	Latitude  float64        `dynamodbav:"latitude"`
	Geometry  geometryRecord `dynamodbav:"geometry"`
	PhotoURL  string         `dynamodbav:"photo_url,omitempty"`
	Review    string         `dynamodbav:"revew"`
}

type geometryRecord struct {
	Lat float64 `dynamodbav:"lat"`
	Lon float64 `dynamodbav:"lon"`
}

// legacyPlaceRecord is the legacy-table row shape. Geometry is raw WKT
// text and is never parsed here; ids are opaque strings.
type legacyPlaceRecord struct {
	ID       string `dynamodbav:"id"`
	Name     string `dynamodbav:"name"`
	Vibe     string `dynamodbav:"vibe"`
	Type     string `dynamodbav:"type"`
	Address  string `dynamodbav:"address"`
	Geometry string `dynamodbav:"geometry"`
	PhotoURL string `dynamodbav:"photo_url,omitempty"`
	Review   string `dynamodbav:"revew"`
}

func (r placeRecord) toDomain() domain.Place {
	return domain.Place{
		ID:        strconv.Itoa(r.ID),
		Name:      r.Name,
		Vibe:      domain.Vibe(r.Vibe),
		Category:  domain.Category(r.Type),
		Address:   r.Address,
		Longitude: r.Longitude,
		Latitude:  r.Latitude,
		Geometry:  domain.PointGeometry(r.Latitude, r.Longitude),
		PhotoURL:  r.PhotoURL,
		Review:    r.Review,
	}
}

func (r legacyPlaceRecord) toDomain() domain.Place {
	p := domain.Place{
		ID:       r.ID,
		Name:     r.Name,
		Vibe:     domain.Vibe(r.Vibe),
		Category: domain.Category(r.Type),
		Address:  r.Address,
		Geometry: domain.WKTGeometry(r.Geometry),
		PhotoURL: r.PhotoURL,
		Review:   r.Review,
	}
	if pt, ok := p.Geometry.Resolve(); ok {
		p.Latitude = pt.Lat
		p.Longitude = pt.Lon
	}
	return p
}

// ListPlaces scans the current table in full, following pagination.
func (c *Client) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	var places []domain.Place
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListPlaces scan: %w", err)
		}
		for _, item := range out.Items {
			var rec placeRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("repository: ListPlaces unmarshal: %w", err)
			}
			if rec.ID == counterID {
				continue
			}
			places = append(places, rec.toDomain())
		}
		if len(out.LastEvaluatedKey) == 0 {
			return places, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// ListLegacyPlaces scans the legacy table in full. With no legacy table
// configured it returns nothing.
func (c *Client) ListLegacyPlaces(ctx context.Context) ([]domain.Place, error) {
	if c.legacyTable == "" {
		return nil, nil
	}
	var places []domain.Place
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.legacyTable),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListLegacyPlaces scan: %w", err)
		}
		for _, item := range out.Items {
			var rec legacyPlaceRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("repository: ListLegacyPlaces unmarshal: %w", err)
			}
			places = append(places, rec.toDomain())
		}
		if len(out.LastEvaluatedKey) == 0 {
			return places, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// GetPlace fetches one current-table record by its numeric id.
// domain.ErrPlaceNotFound signals an unknown id.
func (c *Client) GetPlace(ctx context.Context, id string) (domain.Place, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n == counterID {
		return domain.Place{}, domain.ErrPlaceNotFound
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            placeKey(n),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Place{}, fmt.Errorf("repository: GetPlace get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Place{}, domain.ErrPlaceNotFound
	}

	var rec placeRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return domain.Place{}, fmt.Errorf("repository: GetPlace unmarshal: %w", err)
	}
	return rec.toDomain(), nil
}

// InsertPlace assigns the next id from the table's counter item and
// writes the record. The condition on the put catches a counter that
// somehow handed out a taken id.
func (c *Client) InsertPlace(ctx context.Context, p domain.Place) (string, error) {
	id, err := c.nextID(ctx)
	if err != nil {
		return "", err
	}

	rec := placeRecord{
		ID:        id,
		Name:      p.Name,
		Vibe:      string(p.Vibe),
		Type:      string(p.Category),
		Address:   p.Address,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
		Geometry:  geometryRecord{Lat: p.Latitude, Lon: p.Longitude},
		PhotoURL:  p.PhotoURL,
		Review:    p.Review,
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return "", fmt.Errorf("repository: InsertPlace marshal: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return "", fmt.Errorf("repository: InsertPlace: %w", err)
	}
	return strconv.Itoa(id), nil
}

// nextID atomically increments the counter item and returns the new value.
func (c *Client) nextID(ctx context.Context) (int, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              placeKey(counterID),
		UpdateExpression: aws.String("ADD last_id :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: nextID: %w", err)
	}
	attr, ok := out.Attributes["last_id"]
	if !ok {
		return 0, errors.New("repository: nextID: counter attribute missing from response")
	}
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("repository: nextID: counter attribute is not a number")
	}
	id, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: nextID parse: %w", err)
	}
	return id, nil
}

// UpdatePlace applies the supplied fields to one current-table record.
// Nil fields are left untouched.
func (c *Client) UpdatePlace(ctx context.Context, id string, upd domain.PlaceUpdate) error {
	n, err := strconv.Atoi(id)
	if err != nil || n == counterID {
		return domain.ErrPlaceNotFound
	}

	expr, names, values, err := updateExpression(upd)
	if err != nil {
		return err
	}
	if expr == "" {
		return nil
	}

	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       placeKey(n),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrPlaceNotFound
		}
		return fmt.Errorf("repository: UpdatePlace: %w", err)
	}
	return nil
}

// updateExpression builds a SET expression covering every non-nil field.
func updateExpression(upd domain.PlaceUpdate) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := make(map[string]string)
	values := make(map[string]types.AttributeValue)
	var sets []string

	set := func(attr string, v types.AttributeValue) {
		name := "#" + attr
		value := ":" + attr
		names[name] = attr
		values[value] = v
		sets = append(sets, name+" = "+value)
	}

	if upd.Name != nil {
		set("name", &types.AttributeValueMemberS{Value: *upd.Name})
	}
	if upd.Vibe != nil {
		set("vibe", &types.AttributeValueMemberS{Value: string(*upd.Vibe)})
	}
	if upd.Category != nil {
		set("type", &types.AttributeValueMemberS{Value: string(*upd.Category)})
	}
	if upd.Address != nil {
		set("address", &types.AttributeValueMemberS{Value: *upd.Address})
	}
	if upd.Latitude != nil && upd.Longitude != nil {
		set("latitude", numberAttr(*upd.Latitude))
		set("longitude", numberAttr(*upd.Longitude))
		geom, err := attributevalue.Marshal(geometryRecord{Lat: *upd.Latitude, Lon: *upd.Longitude})
		if err != nil {
			return "", nil, nil, fmt.Errorf("repository: updateExpression marshal geometry: %w", err)
		}
		set("geometry", geom)
	}
	if upd.PhotoURL != nil {
		set("photo_url", &types.AttributeValueMemberS{Value: *upd.PhotoURL})
	}
	if upd.Review != nil {
		set("revew", &types.AttributeValueMemberS{Value: *upd.Review})
	}

	if len(sets) == 0 {
		return "", nil, nil, nil
	}
	return "SET " + strings.Join(sets, ", "), names, values, nil
}

func placeKey(id int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
	}
}

func numberAttr(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}
