package mmdb

import (
	"github.com/mitchellh/mapstructure"

	"github.com/ipgrid/mmdb/internal/decoder"
	"github.com/ipgrid/mmdb/internal/mmdberrors"
)

// Metadata holds the metadata decoded from the database file. It is decoded
// once at open time and immutable afterwards.
type Metadata struct {
	Description              map[string]string `maxminddb:"description"`
	DatabaseType             string            `maxminddb:"database_type"`
	Languages                []string          `maxminddb:"languages"`
	BinaryFormatMajorVersion uint              `maxminddb:"binary_format_major_version"`
	BinaryFormatMinorVersion uint              `maxminddb:"binary_format_minor_version"`
	BuildEpoch               uint              `maxminddb:"build_epoch"`
	IPVersion                uint              `maxminddb:"ip_version"`
	NodeCount                uint              `maxminddb:"node_count"`
	RecordSize               uint              `maxminddb:"record_size"`
}

var requiredMetadataFields = []string{
	"binary_format_major_version",
	"binary_format_minor_version",
	"build_epoch",
	"database_type",
	"description",
	"ip_version",
	"languages",
	"node_count",
	"record_size",
}

// metadataFromValue extracts and validates the typed metadata fields from
// the decoded metadata map.
func metadataFromValue(value decoder.Value) (Metadata, error) {
	var metadata Metadata

	m, ok := value.(decoder.Map)
	if !ok {
		return metadata, mmdberrors.NewInvalidDatabaseError(
			"the metadata is a %v, not a map", value.Kind(),
		)
	}
	for _, field := range requiredMetadataFields {
		if _, ok := m.Get(field); !ok {
			return metadata, mmdberrors.NewInvalidDatabaseError(
				"the metadata is missing the required field %q", field,
			)
		}
	}

	unmarshaler, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "maxminddb",
		Result:  &metadata,
	})
	if err != nil {
		return metadata, err
	}
	if err := unmarshaler.Decode(m.Native()); err != nil {
		return metadata, mmdberrors.NewInvalidDatabaseError(
			"invalid metadata: %v", err,
		)
	}

	switch metadata.RecordSize {
	case 24, 28, 32:
	default:
		return metadata, mmdberrors.NewInvalidDatabaseError(
			"unknown record size: %d", metadata.RecordSize,
		)
	}
	if metadata.IPVersion != 4 && metadata.IPVersion != 6 {
		return metadata, mmdberrors.NewInvalidDatabaseError(
			"unknown IP version: %d", metadata.IPVersion,
		)
	}

	return metadata, nil
}
