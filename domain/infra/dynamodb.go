package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

const destinationIndexName = "DestinationIndex"

type DynamoDB struct {
	db                *dynamodb.Client
	ticketTable       string
	counterTable      string
	announcementTable string
}

func NewDynamoDB(ctx context.Context, cfg config.StoreConfig) (*DynamoDB, error) {
	prefix := cfg.DynamoTablePrefix
	if prefix == "" {
		prefix = "slaffic_ticket"
	}

	var db *dynamodb.Client
	if cfg.DynamoLocal {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion("dummy"),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		db = dynamodb.NewFromConfig(awsCfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			},
		)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		db = dynamodb.NewFromConfig(awsCfg)
	}
	d := &DynamoDB{
		db:                db,
		ticketTable:       prefix + "_ticket",
		counterTable:      prefix + "_counter",
		announcementTable: prefix + "_announcement",
	}
	if cfg.DynamoLocal {
		if err := d.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

func (d *DynamoDB) EnsureTable(ctx context.Context) error {
	tableNames := []string{
		d.ticketTable,
		d.counterTable,
		d.announcementTable,
	}

	for _, tableName := range tableNames {
		if err := d.ensureSingleTable(ctx, tableName); err != nil {
			return fmt.Errorf("failed to ensure table %s: %w", tableName, err)
		}
	}

	return nil
}

func (d *DynamoDB) ensureSingleTable(ctx context.Context, tableName string) error {
	_, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	if err := d.createTable(ctx, tableName); err != nil {
		return err
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitInterval):
		}
	}

	return fmt.Errorf("table %s creation timed out", tableName)
}

func hashKeyTable(tableName, key string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	}
}

func (d *DynamoDB) createTable(ctx context.Context, tableName string) error {
	var createTableInput *dynamodb.CreateTableInput

	switch tableName {
	case d.ticketTable:
		createTableInput = hashKeyTable(tableName, "id")
		createTableInput.AttributeDefinitions = append(createTableInput.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String("dest_channel_id"), AttributeType: types.ScalarAttributeTypeS},
			types.AttributeDefinition{AttributeName: aws.String("dest_message_id"), AttributeType: types.ScalarAttributeTypeS},
		)
		// 投稿済みのチケットだけが載る疎なインデックス
		createTableInput.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(destinationIndexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("dest_channel_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("dest_message_id"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
		}
	case d.counterTable:
		createTableInput = hashKeyTable(tableName, "counter_key")
	case d.announcementTable:
		createTableInput = hashKeyTable(tableName, "id")
	default:
		return fmt.Errorf("unknown table name: %s", tableName)
	}

	_, err := d.db.CreateTable(ctx, createTableInput)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return nil
}

func (d *DynamoDB) NextTicketID(ctx context.Context, prefix string, at time.Time) (string, error) {
	day := model.TicketDay(at)
	out, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.counterTable),
		Key: map[string]types.AttributeValue{
			"counter_key": &types.AttributeValueMemberS{Value: prefix + "#" + day},
		},
		UpdateExpression:         aws.String("ADD #value :one"),
		ExpressionAttributeNames: map[string]string{"#value": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return "", fmt.Errorf("failed to increment counter %s/%s: %w", prefix, day, err)
	}
	seq, err := getNumberValue(out.Attributes, "value")
	if err != nil {
		return "", err
	}
	return model.FormatTicketID(prefix, day, seq), nil
}

func ticketItem(t *model.Ticket) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"id":                   &types.AttributeValueMemberS{Value: t.ID},
		"created_at":           &types.AttributeValueMemberS{Value: t.CreatedAt.Format(time.RFC3339Nano)},
		"updated_at":           &types.AttributeValueMemberS{Value: t.UpdatedAt.Format(time.RFC3339Nano)},
		"created_by_id":        &types.AttributeValueMemberS{Value: t.CreatedByID},
		"created_by_name":      &types.AttributeValueMemberS{Value: t.CreatedByName},
		"source_channel_id":    &types.AttributeValueMemberS{Value: t.SourceChannelID},
		"source_channel_title": &types.AttributeValueMemberS{Value: t.SourceChannelTitle},
		"department":           &types.AttributeValueMemberS{Value: string(t.Department)},
		"body":                 &types.AttributeValueMemberS{Value: t.Body},
		"status":               &types.AttributeValueMemberS{Value: string(t.Status)},
		"manager_id":           &types.AttributeValueMemberS{Value: t.ManagerID},
		"assignee_id":          &types.AttributeValueMemberS{Value: t.AssigneeID},
		"attachment_name":      &types.AttributeValueMemberS{Value: t.AttachmentName},
		"attachment_path":      &types.AttributeValueMemberS{Value: t.AttachmentPath},
		"version":              &types.AttributeValueMemberN{Value: strconv.Itoa(t.Version)},
	}
	// GSI のキーに空文字は使えないので未投稿なら属性ごと省く
	if t.HasDestination() {
		item["dest_channel_id"] = &types.AttributeValueMemberS{Value: t.DestChannelID}
		item["dest_message_id"] = &types.AttributeValueMemberS{Value: t.DestMessageID}
	}
	return item
}

func itemTicket(item map[string]types.AttributeValue) (*model.Ticket, error) {
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := getTimeValue(item, "updated_at")
	if err != nil {
		return nil, err
	}
	version, err := getNumberValue(item, "version")
	if err != nil {
		return nil, err
	}

	return &model.Ticket{
		ID:                 getStringValue(item, "id"),
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
		CreatedByID:        getStringValue(item, "created_by_id"),
		CreatedByName:      getStringValue(item, "created_by_name"),
		SourceChannelID:    getStringValue(item, "source_channel_id"),
		SourceChannelTitle: getStringValue(item, "source_channel_title"),
		Department:         model.Department(getStringValue(item, "department")),
		Body:               getStringValue(item, "body"),
		Status:             model.Status(getStringValue(item, "status")),
		ManagerID:          getStringValue(item, "manager_id"),
		DestChannelID:      getStringValue(item, "dest_channel_id"),
		DestMessageID:      getStringValue(item, "dest_message_id"),
		AssigneeID:         getStringValue(item, "assignee_id"),
		AttachmentName:     getStringValue(item, "attachment_name"),
		AttachmentPath:     getStringValue(item, "attachment_path"),
		Version:            version,
	}, nil
}

func (d *DynamoDB) SaveTicket(ctx context.Context, t *model.Ticket) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.ticketTable),
		Item:      ticketItem(t),
	})
	return err
}

func (d *DynamoDB) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.ticketTable),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ticketNotFound(id)
	}
	return itemTicket(result.Item)
}

// UpdateTicket は version を条件にした書き込みで、競合したら読み直してやり直す
func (d *DynamoDB) UpdateTicket(ctx context.Context, id string, mutate func(*model.Ticket) error) (*model.Ticket, error) {
	for i := 0; i < maxUpdateRetries; i++ {
		t, err := d.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := t.Version
		if err := mutate(t); err != nil {
			return nil, err
		}
		t.Version = prev + 1
		t.UpdatedAt = time.Now()

		_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(d.ticketTable),
			Item:                     ticketItem(t),
			ConditionExpression:      aws.String("#version = :version"),
			ExpressionAttributeNames: map[string]string{"#version": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.Itoa(prev)},
			},
		})
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("failed to update ticket %s: too many conflicts", id)
}

func (d *DynamoDB) ListOpenTickets(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error) {
	expr := "#status <> :done AND #status <> :closed"
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":done":   &types.AttributeValueMemberS{Value: string(model.StatusDone)},
		":closed": &types.AttributeValueMemberS{Value: string(model.StatusClosed)},
	}
	if filter.Department != "" {
		expr += " AND #department = :department"
		names["#department"] = "department"
		values[":department"] = &types.AttributeValueMemberS{Value: string(filter.Department)}
	}
	if filter.CreatedByID != "" {
		expr += " AND created_by_id = :created_by_id"
		values[":created_by_id"] = &types.AttributeValueMemberS{Value: filter.CreatedByID}
	}

	var tickets []model.Ticket
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:                 aws.String(d.ticketTable),
		FilterExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			t, err := itemTicket(item)
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, *t)
		}
	}

	// Dynamoでうまいことソートできないのでここでソート
	sortTickets(tickets)
	return tickets, nil
}

func (d *DynamoDB) FindTicketByDestination(ctx context.Context, channelID, messageID string) (*model.Ticket, error) {
	result, err := d.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.ticketTable),
		IndexName:              aws.String(destinationIndexName),
		KeyConditionExpression: aws.String("dest_channel_id = :channel_id AND dest_message_id = :message_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":channel_id": &types.AttributeValueMemberS{Value: channelID},
			":message_id": &types.AttributeValueMemberS{Value: messageID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ticketNotFound(channelID + "/" + messageID)
	}
	return itemTicket(result.Items[0])
}

func (d *DynamoDB) SaveAnnouncement(ctx context.Context, a *model.Announcement) error {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.announcementTable),
		Item: map[string]types.AttributeValue{
			"id":          &types.AttributeValueMemberS{Value: a.ID},
			"sender_id":   &types.AttributeValueMemberS{Value: a.SenderID},
			"sender_name": &types.AttributeValueMemberS{Value: a.SenderName},
			"channel_id":  &types.AttributeValueMemberS{Value: a.ChannelID},
			"message":     &types.AttributeValueMemberS{Value: a.Message},
			"delivered":   &types.AttributeValueMemberN{Value: strconv.Itoa(a.Delivered)},
			"sent_at":     &types.AttributeValueMemberS{Value: a.SentAt.Format(time.RFC3339)},
		},
	})
	return err
}

func (d *DynamoDB) Close() error {
	return nil
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}

func getTimeValue(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s := getStringValue(item, key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s (%s): %w", key, s, err)
	}
	return t, nil
}
