package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Publisher types.
	TypeQueue = "queue"
	TypeHTTP  = "http"
	TypeS3    = "s3"

	// Queue providers.
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
	s3DefaultContentType      = "application/rss+xml; charset=utf-8"
)

// ErrNoPublishers is returned when a publishers file declares nothing.
var ErrNoPublishers = errors.New("publishers file contains no publishers entries")

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one entry of the publishers file.
type PublisherConfig struct {
	ID      string                `json:"id" yaml:"id"`
	Type    string                `json:"type" yaml:"type"`
	Enabled *bool                 `json:"enabled" yaml:"enabled"`
	Feeds   []string              `json:"feeds" yaml:"feeds"`
	Queue   *QueuePublisherConfig `json:"queue" yaml:"queue"`
	HTTP    *HTTPPublisherConfig  `json:"http" yaml:"http"`
	S3      *S3PublisherConfig    `json:"s3" yaml:"s3"`
}

// QueuePublisherConfig selects a cloud queue provider.
type QueuePublisherConfig struct {
	Provider string          `json:"provider" yaml:"provider"`
	SQS      *AWSQueueConfig `json:"sqs" yaml:"sqs"`
	SNS      *AWSQueueConfig `json:"sns" yaml:"sns"`
	GCP      *GCPQueueConfig `json:"gcp" yaml:"gcp"`
}

// AWSCredentials are optional static keys; without them the default AWS chain applies.
type AWSCredentials struct {
	Region          string `json:"region" yaml:"region"`
	Profile         string `json:"profile" yaml:"profile"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// AWSQueueConfig addresses an SQS queue (Target is the queue URL) or an SNS topic (Target is the ARN).
type AWSQueueConfig struct {
	AWSCredentials `yaml:",inline"`
	Target         string `json:"target" yaml:"target"`
}

// GCPQueueConfig addresses a Pub/Sub topic.
type GCPQueueConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig posts the event as JSON to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// S3PublisherConfig uploads the written feed file to a bucket.
type S3PublisherConfig struct {
	AWSCredentials `yaml:",inline"`
	Bucket         string `json:"bucket" yaml:"bucket"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	ContentType    string `json:"content_type" yaml:"content_type"`
	CacheControl   string `json:"cache_control" yaml:"cache_control"`
	UsePathStyle   bool   `json:"use_path_style" yaml:"use_path_style"`
}

// LoadConfigs reads a YAML or JSON publishers file, expanding ${VAR} references.
func LoadConfigs(path string) ([]PublisherConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}
	return ParseConfigs([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
}

// ParseConfigs decodes and validates publisher entries. ext picks the decoder;
// an empty ext tries YAML then JSON.
func ParseConfigs(data []byte, ext string) ([]PublisherConfig, error) {
	file, err := decodeConfigFile(data, ext)
	if err != nil {
		return nil, err
	}
	if len(file.Publishers) == 0 {
		return nil, ErrNoPublishers
	}

	seen := make(map[string]struct{}, len(file.Publishers))
	out := make([]PublisherConfig, 0, len(file.Publishers))
	for i, cfg := range file.Publishers {
		cfg = cfg.normalized()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

func decodeConfigFile(data []byte, ext string) (configFile, error) {
	var decode []func([]byte, any) error
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".yaml", ".yml":
		decode = append(decode, yaml.Unmarshal)
	case ".json":
		decode = append(decode, json.Unmarshal)
	case "":
		decode = append(decode, yaml.Unmarshal, json.Unmarshal)
	default:
		return configFile{}, fmt.Errorf("publishers file extension %q not supported (expected .yaml, .yml or .json)", ext)
	}

	var lastErr error
	for _, fn := range decode {
		var file configFile
		if err := fn(data, &file); err != nil {
			lastErr = err
			continue
		}
		return file, nil
	}
	return configFile{}, fmt.Errorf("decode publishers file: %w", lastErr)
}

// EnabledValue reports whether the entry is enabled; unset means enabled.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// Wants reports whether the entry should receive events for the named feed.
// An empty Feeds list subscribes to every feed.
func (cfg PublisherConfig) Wants(feed string) bool {
	return subscribed(cfg.Feeds, feed)
}

func subscribed(feeds []string, feed string) bool {
	if len(feeds) == 0 {
		return true
	}
	for _, f := range feeds {
		if f == feed {
			return true
		}
	}
	return false
}

// Enabled filters cfgs down to enabled entries.
func Enabled(cfgs []PublisherConfig) []PublisherConfig {
	out := make([]PublisherConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

func (cfg PublisherConfig) normalized() PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	cfg.Feeds = trimAll(cfg.Feeds)

	if q := cfg.Queue; q != nil {
		qc := *q
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		qc.SQS = qc.SQS.normalized()
		qc.SNS = qc.SNS.normalized()
		if qc.GCP != nil {
			g := *qc.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			qc.GCP = &g
		}
		cfg.Queue = &qc
	}
	if h := cfg.HTTP; h != nil {
		hc := *h
		hc.URL = strings.TrimSpace(hc.URL)
		hc.Headers = sanitizeHeaders(hc.Headers)
		if hc.TimeoutSeconds <= 0 {
			hc.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &hc
	}
	if s := cfg.S3; s != nil {
		sc := *s
		sc.AWSCredentials = sc.AWSCredentials.normalized()
		sc.Bucket = strings.TrimSpace(sc.Bucket)
		sc.Prefix = strings.TrimLeft(strings.TrimSpace(sc.Prefix), "/")
		if sc.ContentType = strings.TrimSpace(sc.ContentType); sc.ContentType == "" {
			sc.ContentType = s3DefaultContentType
		}
		sc.CacheControl = strings.TrimSpace(sc.CacheControl)
		cfg.S3 = &sc
	}
	return cfg
}

func (c *AWSQueueConfig) normalized() *AWSQueueConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.AWSCredentials = out.AWSCredentials.normalized()
	out.Target = strings.TrimSpace(out.Target)
	return &out
}

func (c AWSCredentials) normalized() AWSCredentials {
	c.Region = strings.TrimSpace(c.Region)
	c.Profile = strings.TrimSpace(c.Profile)
	c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
	c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
	return c
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Validate checks the fields each publisher type needs.
func (cfg PublisherConfig) Validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	case TypeQueue:
		return cfg.validateQueue()
	case TypeHTTP:
		if cfg.HTTP == nil || cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for publisher %q", cfg.ID)
		}
	case TypeS3:
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for publisher %q", cfg.ID)
		}
		return cfg.S3.AWSCredentials.validate(cfg.ID, "s3")
	default:
		return fmt.Errorf("type %q not supported for publisher %q", cfg.Type, cfg.ID)
	}
	return nil
}

func (cfg PublisherConfig) validateQueue() error {
	q := cfg.Queue
	if q == nil {
		return fmt.Errorf("queue config required for publisher %q", cfg.ID)
	}
	switch q.Provider {
	case QueueProviderAWSSQS:
		return validateAWSQueue(cfg.ID, "sqs", q.SQS)
	case QueueProviderAWSSNS:
		return validateAWSQueue(cfg.ID, "sns", q.SNS)
	case QueueProviderGCP:
		if q.GCP == nil || q.GCP.ProjectID == "" || q.GCP.Topic == "" {
			return fmt.Errorf("gcp.project_id and gcp.topic are required for publisher %q", cfg.ID)
		}
		return nil
	default:
		return fmt.Errorf("queue provider %q not supported for publisher %q", q.Provider, cfg.ID)
	}
}

func validateAWSQueue(id, section string, c *AWSQueueConfig) error {
	if c == nil || c.Target == "" {
		return fmt.Errorf("%s.target is required for publisher %q", section, id)
	}
	return c.AWSCredentials.validate(id, section)
}

func (c AWSCredentials) validate(id, section string) error {
	if c.Region == "" {
		return fmt.Errorf("%s.region is required for publisher %q", section, id)
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%s.access_key_id and %s.secret_access_key must be set together for publisher %q", section, section, id)
	}
	return nil
}
