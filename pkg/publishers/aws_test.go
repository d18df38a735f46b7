package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/assert/v2"
)

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	in *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestSQSSenderSendsEventJSON(t *testing.T) {
	client := &fakeSQS{}
	sender := &awsSQSSender{queueURL: "https://sqs.example/q", client: client, log: ensureLogger(nil)}

	err := sender.Send(context.Background(), sampleEvent())
	assert.Equal(t, nil, err)
	assert.Equal(t, "https://sqs.example/q", aws.ToString(client.in.QueueUrl))
	assert.Equal(t, "my", aws.ToString(client.in.MessageAttributes["feed"].StringValue))
	assert.Equal(t, "5", aws.ToString(client.in.MessageAttributes["item_count"].StringValue))

	var evt Event
	assert.Equal(t, nil, json.Unmarshal([]byte(aws.ToString(client.in.MessageBody)), &evt))
	assert.Equal(t, "run-1", evt.RunID)
}

func TestQueuePublisherWrapsSenderError(t *testing.T) {
	boom := errors.New("throttled")
	pub := &queuePublisher{
		id:       "q",
		provider: QueueProviderAWSSQS,
		sender:   &awsSQSSender{client: &fakeSQS{err: boom}, log: ensureLogger(nil)},
	}

	err := pub.Publish(context.Background(), sampleEvent())
	assert.Equal(t, true, errors.Is(err, boom))
	assert.Equal(t, TypeQueue, pub.Type())
}

func TestSNSSenderSetsSubject(t *testing.T) {
	client := &fakeSNS{}
	sender := &awsSNSSender{topicARN: "arn:topic", client: client, log: ensureLogger(nil)}

	assert.Equal(t, nil, sender.Send(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:topic", aws.ToString(client.in.TopicArn))
	assert.Equal(t, "feed my updated: 5 items", aws.ToString(client.in.Subject))
}

func TestS3PublisherUploadsFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocks_rss.xml")
	assert.Equal(t, nil, os.WriteFile(path, []byte("<rss/>"), 0o644))

	client := &fakeS3{}
	pub := &s3Publisher{
		id:     "bucket",
		cfg:    S3PublisherConfig{Bucket: "feeds", Prefix: "rss", ContentType: s3DefaultContentType, CacheControl: "max-age=300"},
		client: client,
		log:    ensureLogger(nil),
	}

	evt := sampleEvent()
	evt.OutputPath = path
	assert.Equal(t, nil, pub.Publish(context.Background(), evt))
	assert.Equal(t, "feeds", aws.ToString(client.in.Bucket))
	assert.Equal(t, "rss/stocks_rss.xml", aws.ToString(client.in.Key))
	assert.Equal(t, s3DefaultContentType, aws.ToString(client.in.ContentType))
	assert.Equal(t, "max-age=300", aws.ToString(client.in.CacheControl))
	assert.Equal(t, "<rss/>", string(client.body))
	assert.Equal(t, "run-1", client.in.Metadata["run-id"])
}

func TestS3PublisherMissingFile(t *testing.T) {
	pub := &s3Publisher{id: "bucket", client: &fakeS3{}, log: ensureLogger(nil)}

	evt := sampleEvent()
	evt.OutputPath = filepath.Join(t.TempDir(), "gone.xml")
	err := pub.Publish(context.Background(), evt)
	assert.Equal(t, true, errors.Is(err, os.ErrNotExist))

	evt.OutputPath = ""
	assert.NotEqual(t, nil, pub.Publish(context.Background(), evt))
}

func TestS3ObjectKeyWithoutPrefix(t *testing.T) {
	pub := &s3Publisher{}
	assert.Equal(t, "watch_rss.xml", pub.ObjectKey("/srv/feeds/watch_rss.xml"))
}
