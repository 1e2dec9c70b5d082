package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"custodia-hq/amber/pkg/datastore"
)

// EnvelopeMetadata describes the records packed into a blob. It is stored
// inside the blob itself so an archive file is self-describing even if the
// metadata row is lost.
type EnvelopeMetadata struct {
	ArchiveID         string             `json:"archiveId"`
	TenantID          string             `json:"tenantId"`
	DataType          datastore.DataType `json:"dataType"`
	SourceCollection  string             `json:"sourceCollection"`
	RecordCount       int                `json:"recordCount"`
	CreatedAt         time.Time          `json:"createdAt"`
	RetentionPolicyID string             `json:"retentionPolicyId"`
}

// Envelope is the JSON document stored in an archive blob.
type Envelope struct {
	Metadata EnvelopeMetadata    `json:"metadata"`
	Records  []*datastore.Record `json:"records"`
}

// EncodeEnvelope serializes an envelope to compact JSON.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope from blob bytes.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Metadata.ArchiveID == "" {
		return nil, fmt.Errorf("envelope has no archive ID")
	}
	return &env, nil
}
