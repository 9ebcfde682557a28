package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a bun model keyed by a string id column.
type keyedRecord[T any] interface {
	*T
	recordKey() string
	setRecordKey(id string)
}

// recordHandlers builds go-repository-bun handlers for a record keyed by its
// "id" column. Only an empty key reports uuid.Nil, so the repository never
// replaces a caller supplied id.
func recordHandlers[T any, P keyedRecord[T]]() repository.ModelHandlers[P] {
	return repository.ModelHandlers[P]{
		NewRecord: func() P {
			return P(new(T))
		},
		GetID: func(record P) uuid.UUID {
			return recordUUID(record.recordKey())
		},
		SetID: func(record P, id uuid.UUID) {
			record.setRecordKey(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record P) string {
			return strings.TrimSpace(record.recordKey())
		},
	}
}

func (r *workRecord) recordKey() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *workRecord) setRecordKey(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *webhookRecord) recordKey() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *webhookRecord) setRecordKey(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *blockRecord) recordKey() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *blockRecord) setRecordKey(id string) {
	if r != nil {
		r.ID = id
	}
}

// recordUUID maps text keys such as "work_1" to a stable name based uuid.
func recordUUID(value string) uuid.UUID {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil
	}
	if parsed, err := uuid.Parse(value); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(value))
}

func rowsAffected(res sql.Result) (int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	return affected, nil
}

// newRecordID keeps caller ids and fills empty ones with a uuid.
func newRecordID(id string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}
