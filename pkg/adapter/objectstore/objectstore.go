// Package objectstore adapts S3-compatible object storage to the hexad
// adapter contract using aws-sdk-go. Objects are expected to be tagged with
// a hexad_id prefix; Query lists objects under that prefix and treats their
// metadata as the backend-native result.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "objectstore"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityDocument, types.ModalityProvenance)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, ferrors.New(ferrors.KindBackendError, "objectstore: config missing bucket")
	}
	cfg := aws.NewConfig().
		WithRegion(config["region"]).
		WithS3ForcePathStyle(true)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	if accessKey, secretKey := config["access_key"], config["secret_key"]; accessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "objectstore: create session", err)
	}
	return &Instance{bucket: bucket, client: s3.New(sess)}, nil
}

type Instance struct {
	bucket string
	client *s3.S3
}

func (i *Instance) Close() error { return nil }

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	start := time.Now()
	_, err := i.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(i.bucket)})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: elapsed}, ferrors.Wrap(ferrors.KindUnreachable, "objectstore: head bucket failed", err)
	}
	return adapter.HealthStatus{Healthy: true, ResponseTimeMS: elapsed}, nil
}

type objectRow struct {
	HexadID string
	Key     string
	Size    int64
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	prefix := ""
	if hexadID, ok := q.Filters["hexad_id"]; ok {
		prefix = hexadID + "/"
	}
	out, err := i.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(i.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(int64(q.EffectiveLimit())),
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "objectstore: list objects failed", err)
	}

	rows := make([]objectRow, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.StringValue(obj.Key)
		rows = append(rows, objectRow{
			HexadID: strings.SplitN(key, "/", 2)[0],
			Key:     key,
			Size:    aws.Int64Value(obj.Size),
		})
	}
	return rows, nil
}

// Get fetches an object's body. Not part of the Adapter contract — a caller
// that has already resolved a NormalisedResult's key uses this to fetch the
// payload directly rather than through the resolver's merge path.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := i.client.GetObjectWithContext(ctx, &s3.GetObjectInput{Bucket: aws.String(i.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "objectstore: get object failed", err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, ferrors.Wrap(ferrors.KindIOError, "objectstore: read object body", err)
	}
	return buf.Bytes(), nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]objectRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "objectstore: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(rows))
	for _, r := range rows {
		hexadID := r.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		data, _ := json.Marshal(map[string]interface{}{"key": r.Key, "size_bytes": r.Size})
		var decoded interface{}
		json.Unmarshal(data, &decoded)
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       1.0,
			Data:        decoded,
		})
	}
	return out, nil
}
