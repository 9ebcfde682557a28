package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound                     = errors.New("core: record not found")
	ErrWorkNotFound                 = fmt.Errorf("%w: work", ErrNotFound)
	ErrBlockNotFound                = fmt.Errorf("%w: block", ErrNotFound)
	ErrWebhookNotFound              = fmt.Errorf("%w: webhook", ErrNotFound)
	ErrStatusConflict               = errors.New("core: block status conflict")
	ErrInvalidBlockStatusTransition = errors.New("core: invalid block status transition")
	ErrInvalidImageMode             = errors.New("core: invalid image mode")
	ErrTooManyBackgroundImages      = errors.New("core: too many background images")
	ErrStoreUnavailable             = errors.New("core: unit store unavailable")
	ErrBlockWorkMismatch            = errors.New("core: block does not belong to work")
	ErrCallbackStatusUnsupported    = errors.New("core: unsupported callback status")
	ErrCallbackPostIDRequired       = errors.New("core: post id is required for completed callbacks")
	ErrCallbackBlockMismatch        = errors.New("core: callback block id mismatch")
)

// MaxBackgroundImages bounds ImageConfig.Backgrounds.
const MaxBackgroundImages = 5

type BlockStatus string

const (
	BlockStatusPending    BlockStatus = "pending"
	BlockStatusProcessing BlockStatus = "processing"
	BlockStatusCompleted  BlockStatus = "completed"
	BlockStatusFailed     BlockStatus = "failed"
)

func (s BlockStatus) Valid() bool {
	switch s {
	case BlockStatusPending, BlockStatusProcessing, BlockStatusCompleted, BlockStatusFailed:
		return true
	default:
		return false
	}
}

func (s BlockStatus) Terminal() bool {
	return s == BlockStatusCompleted || s == BlockStatusFailed
}

// BlockTransitionAllowed reports whether from -> to is an edge of the block
// lifecycle. There is no edge into pending and none out of completed.
func BlockTransitionAllowed(from BlockStatus, to BlockStatus) bool {
	switch from {
	case BlockStatusPending, BlockStatusFailed:
		return to == BlockStatusProcessing
	case BlockStatusProcessing:
		return to == BlockStatusCompleted || to == BlockStatusFailed
	default:
		return false
	}
}

func NormalizeBlockStatus(value string) BlockStatus {
	return BlockStatus(strings.TrimSpace(strings.ToLower(value)))
}

// FieldSpec describes one post-level field. Keys of the owning map are both
// substitution tokens and output field names.
type FieldSpec struct {
	Value    string `json:"value"`
	Prompt   string `json:"prompt"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// UnmarshalJSON accepts either an object or a bare string, which becomes Value.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*f = FieldSpec{Value: value}
		return nil
	}
	type plain FieldSpec
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*f = FieldSpec(decoded)
	return nil
}

// FieldOverride shadows a Work field on a single block. Empty members keep the
// Work value.
type FieldOverride struct {
	Value    string `json:"value,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Type     string `json:"type,omitempty"`
	Required *bool  `json:"required,omitempty"`
}

func (f *FieldOverride) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*f = FieldOverride{Value: value}
		return nil
	}
	type plain FieldOverride
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*f = FieldOverride(decoded)
	return nil
}

type ImageMode string

const (
	ImageModeGenerate       ImageMode = "generate"
	ImageModeGenerateFromDT ImageMode = "generate_from_dt"
)

type ImageConfig struct {
	Enabled     bool              `json:"enabled"`
	Mode        ImageMode         `json:"mode"`
	TemplateID  string            `json:"template_id"`
	TextFields  map[string]string `json:"text_fields"`
	ColorFields map[string]string `json:"color_fields"`
	Backgrounds []string          `json:"backgrounds"`
}

func (c ImageConfig) Validate() error {
	if !c.Enabled && strings.TrimSpace(string(c.Mode)) == "" {
		return nil
	}
	switch c.Mode {
	case ImageModeGenerate, ImageModeGenerateFromDT:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidImageMode, c.Mode)
	}
	if len(c.Backgrounds) > MaxBackgroundImages {
		return fmt.Errorf("%w: %d > %d", ErrTooManyBackgroundImages, len(c.Backgrounds), MaxBackgroundImages)
	}
	return nil
}

// Normalize trims fields and defaults an enabled config to the generate mode.
func (c ImageConfig) Normalize() ImageConfig {
	out := ImageConfig{
		Enabled:     c.Enabled,
		Mode:        ImageMode(strings.TrimSpace(strings.ToLower(string(c.Mode)))),
		TemplateID:  strings.TrimSpace(c.TemplateID),
		TextFields:  copyStringMap(c.TextFields),
		ColorFields: copyStringMap(c.ColorFields),
		Backgrounds: []string{},
	}
	if out.Enabled && out.Mode == "" {
		out.Mode = ImageModeGenerate
	}
	for _, background := range c.Backgrounds {
		if trimmed := strings.TrimSpace(background); trimmed != "" {
			out.Backgrounds = append(out.Backgrounds, trimmed)
		}
	}
	return out
}

// ParseImageConfig decodes the stored image configuration blob once, at the
// boundary. An empty blob yields a disabled config.
func ParseImageConfig(raw []byte) (ImageConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ImageConfig{}.Normalize(), nil
	}
	var cfg ImageConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ImageConfig{}, fmt.Errorf("core: decode image config: %w", err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return ImageConfig{}, err
	}
	return cfg, nil
}

// ParseFieldMap decodes a stored field map blob.
func ParseFieldMap(raw []byte) (map[string]FieldSpec, error) {
	out := map[string]FieldSpec{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("core: decode field map: %w", err)
	}
	return normalizeFieldMap(out), nil
}

type Work struct {
	ID           string
	Title        string
	PostType     string
	PostStatus   string
	AuthorID     int64
	Instructions string
	Fields       map[string]FieldSpec
	Image        ImageConfig
	Taxonomies   map[string]bool
	DefaultTerms map[string][]string
	WebhookID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (w Work) EnabledTaxonomies() []string {
	out := make([]string, 0, len(w.Taxonomies))
	for name, enabled := range w.Taxonomies {
		if enabled && strings.TrimSpace(name) != "" {
			out = append(out, strings.TrimSpace(name))
		}
	}
	sort.Strings(out)
	return out
}

type Webhook struct {
	ID        string
	Name      string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Block struct {
	ID                string
	WorkID            string
	ArticleURL        string
	Keyword           string
	Taxonomies        map[string][]string
	Fields            map[string]FieldOverride
	FeatureImageID    int64
	FeatureImageTitle string
	Status            BlockStatus
	ErrorMessage      string
	PostID            int64
	Attempts          int
	DispatchedAt      *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BlockUpdate carries the columns written together with a status CAS. Nil
// members are left untouched.
type BlockUpdate struct {
	ErrorMessage     *string
	PostID           *int64
	DispatchedAt     *time.Time
	CompletedAt      *time.Time
	IncrementAttempt bool
}

// Apply mutates block as a store would after a successful CAS.
func (u BlockUpdate) Apply(block *Block, status BlockStatus, now time.Time) {
	if block == nil {
		return
	}
	block.Status = status
	block.UpdatedAt = now
	if u.ErrorMessage != nil {
		block.ErrorMessage = *u.ErrorMessage
	}
	if u.PostID != nil {
		block.PostID = *u.PostID
	}
	if u.DispatchedAt != nil {
		value := u.DispatchedAt.UTC()
		block.DispatchedAt = &value
	}
	if u.CompletedAt != nil {
		value := u.CompletedAt.UTC()
		block.CompletedAt = &value
	}
	if u.IncrementAttempt {
		block.Attempts++
	}
}

type BlockInput struct {
	ID                string
	ArticleURL        string
	Keyword           string
	Taxonomies        map[string][]string
	Fields            map[string]FieldOverride
	FeatureImageID    int64
	FeatureImageTitle string
}

// NewBlock builds a pending block for work, copying the work's default terms
// onto every enabled taxonomy the input leaves unassigned.
func NewBlock(work Work, in BlockInput, now time.Time) Block {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	taxonomies := copyTermsMap(in.Taxonomies)
	for _, name := range work.EnabledTaxonomies() {
		if terms, ok := taxonomies[name]; ok && len(terms) > 0 {
			continue
		}
		if defaults := work.DefaultTerms[name]; len(defaults) > 0 {
			taxonomies[name] = append([]string(nil), defaults...)
		}
	}
	return Block{
		ID:                id,
		WorkID:            strings.TrimSpace(work.ID),
		ArticleURL:        strings.TrimSpace(in.ArticleURL),
		Keyword:           strings.TrimSpace(in.Keyword),
		Taxonomies:        taxonomies,
		Fields:            copyOverrideMap(in.Fields),
		FeatureImageID:    in.FeatureImageID,
		FeatureImageTitle: in.FeatureImageTitle,
		Status:            BlockStatusPending,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}

type BlockListFilter struct {
	WorkID  string
	Status  BlockStatus
	Page    int
	PerPage int
}

type BlockPage struct {
	Items   []Block
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

func (f BlockListFilter) Normalize() BlockListFilter {
	out := BlockListFilter{
		WorkID:  strings.TrimSpace(f.WorkID),
		Status:  NormalizeBlockStatus(string(f.Status)),
		Page:    f.Page,
		PerPage: f.PerPage,
	}
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PerPage <= 0 {
		out.PerPage = 25
	}
	if out.PerPage > 200 {
		out.PerPage = 200
	}
	return out
}

func (f BlockListFilter) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.PerPage
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyTermsMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for key, terms := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = append([]string{}, terms...)
	}
	return out
}

func copyOverrideMap(in map[string]FieldOverride) map[string]FieldOverride {
	out := make(map[string]FieldOverride, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if value.Required != nil {
			required := *value.Required
			value.Required = &required
		}
		out[key] = value
	}
	return out
}

func normalizeFieldMap(in map[string]FieldSpec) map[string]FieldSpec {
	out := make(map[string]FieldSpec, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// CloneBlock deep-copies the maps and pointers of a block.
func CloneBlock(block Block) Block {
	out := block
	out.Taxonomies = copyTermsMap(block.Taxonomies)
	out.Fields = copyOverrideMap(block.Fields)
	if block.DispatchedAt != nil {
		value := *block.DispatchedAt
		out.DispatchedAt = &value
	}
	if block.CompletedAt != nil {
		value := *block.CompletedAt
		out.CompletedAt = &value
	}
	return out
}

// CloneWork deep-copies the maps of a work.
func CloneWork(work Work) Work {
	out := work
	out.Fields = normalizeFieldMap(work.Fields)
	out.Image = work.Image.Normalize()
	out.Taxonomies = make(map[string]bool, len(work.Taxonomies))
	for key, value := range work.Taxonomies {
		out.Taxonomies[key] = value
	}
	out.DefaultTerms = copyTermsMap(work.DefaultTerms)
	return out
}
