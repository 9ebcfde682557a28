package core

import (
	"context"
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// PostField is one resolved entry of the outbound post_fields map.
type PostField struct {
	Value    string `json:"value"`
	Prompt   string `json:"prompt"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Payload is the JSON body POSTed to a webhook. Field order is the wire order
// and maps marshal with sorted keys, so equal inputs encode to equal bytes.
type Payload struct {
	BlockID           string               `json:"block_id"`
	WorkID            string               `json:"work_id"`
	ArticleURL        string               `json:"article_url"`
	Keyword           string               `json:"keyword"`
	Instructions      string               `json:"instructions"`
	Taxonomies        map[string][]string  `json:"taxonomies"`
	PostFields        map[string]PostField `json:"post_fields"`
	FeatureImageTitle string               `json:"feature_image_title"`
	Sitemap           string               `json:"sitemap"`
	ImageConfig       ImageConfig          `json:"image_config"`
	CallbackURL       string               `json:"callback_url"`
	APIKey            string               `json:"api_key"`
}

func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}

type PayloadBuilderConfig struct {
	Sitemap     SitemapProvider
	CallbackURL string
	APIKey      string
}

type PayloadBuilder struct {
	sitemap     SitemapProvider
	callbackURL string
	apiKey      string
}

func NewPayloadBuilder(cfg PayloadBuilderConfig) *PayloadBuilder {
	return &PayloadBuilder{
		sitemap:     cfg.Sitemap,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		apiKey:      strings.TrimSpace(cfg.APIKey),
	}
}

// Build resolves a work and block into the outbound payload. It performs no
// writes and no network calls.
func (b *PayloadBuilder) Build(ctx context.Context, work *Work, block *Block, webhook *Webhook) (Payload, error) {
	if err := validateBuildInputs(work, block, webhook); err != nil {
		return Payload{}, err
	}

	sitemap := ""
	if b != nil && b.sitemap != nil {
		resolved, err := b.sitemap.GetSitemapJSON(ctx, work.PostType)
		if err != nil {
			return Payload{}, FatalError("core: sitemap lookup failed for post type "+work.PostType, err)
		}
		sitemap = resolved
	}

	bindings := BindingsFor(*work, *block, sitemap)
	payload := Payload{
		BlockID:           block.ID,
		WorkID:            work.ID,
		ArticleURL:        block.ArticleURL,
		Keyword:           block.Keyword,
		Instructions:      Resolve(work.Instructions, bindings),
		Taxonomies:        copyTermsMap(block.Taxonomies),
		PostFields:        resolvePostFields(work.Fields, block.Fields, bindings),
		FeatureImageTitle: bindings[TokenImageTitle],
		Sitemap:           sitemap,
		ImageConfig:       work.Image,
	}
	if b != nil {
		payload.CallbackURL = b.callbackURL
		payload.APIKey = b.apiKey
	}
	return payload, nil
}

func validateBuildInputs(work *Work, block *Block, webhook *Webhook) error {
	var fields []goerrors.FieldError
	switch {
	case work == nil:
		fields = append(fields, goerrors.FieldError{Field: "work", Message: "required"})
	case strings.TrimSpace(work.ID) == "":
		fields = append(fields, goerrors.FieldError{Field: "work.id", Message: "required"})
	}
	switch {
	case block == nil:
		fields = append(fields, goerrors.FieldError{Field: "block", Message: "required"})
	case strings.TrimSpace(block.ID) == "":
		fields = append(fields, goerrors.FieldError{Field: "block.id", Message: "required"})
	}
	switch {
	case webhook == nil:
		fields = append(fields, goerrors.FieldError{Field: "webhook", Message: "required"})
	default:
		if strings.TrimSpace(webhook.ID) == "" {
			fields = append(fields, goerrors.FieldError{Field: "webhook.id", Message: "required"})
		}
		if strings.TrimSpace(webhook.URL) == "" {
			fields = append(fields, goerrors.FieldError{Field: "webhook.url", Message: "required"})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return ValidationError("core: payload inputs are incomplete", fields...)
}

// resolvePostFields overlays block overrides on work fields member by member
// and resolves value and prompt against bindings.
func resolvePostFields(
	workFields map[string]FieldSpec,
	overrides map[string]FieldOverride,
	bindings map[string]string,
) map[string]PostField {
	out := make(map[string]PostField, len(workFields)+len(overrides))
	for key, spec := range workFields {
		out[key] = PostField{
			Value:    spec.Value,
			Prompt:   spec.Prompt,
			Type:     spec.Type,
			Required: spec.Required,
		}
	}
	for key, override := range overrides {
		field := out[key]
		if override.Value != "" {
			field.Value = override.Value
		}
		if override.Prompt != "" {
			field.Prompt = override.Prompt
		}
		if override.Type != "" {
			field.Type = override.Type
		}
		if override.Required != nil {
			field.Required = *override.Required
		}
		out[key] = field
	}
	for key, field := range out {
		field.Value = Resolve(field.Value, bindings)
		field.Prompt = Resolve(field.Prompt, bindings)
		out[key] = field
	}
	return out
}
