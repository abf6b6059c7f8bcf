package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func entryKey(scope managecms.Scope, id managecms.ContentID) string {
	return "entry:" + scope.String() + "/" + string(id)
}

// entryDocument returns the entry document, from the cache when present.
func (c *Client) entryDocument(ctx context.Context, scope managecms.Scope, token string, id managecms.ContentID) ([]byte, error) {
	if doc, ok := c.cached(entryKey(scope, id)); ok {
		return doc, nil
	}
	return c.fetchEntry(ctx, scope, token, id)
}

// fetchEntry reads the current entry document from the API and refreshes the
// cached copy. Mutations always start from here.
func (c *Client) fetchEntry(ctx context.Context, scope managecms.Scope, token string, id managecms.ContentID) ([]byte, error) {
	doc, err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     api.EntryPath(scope, id),
		token:    token,
		notFound: managecms.ErrEntryNotFound,
	})
	if err != nil {
		return nil, err
	}
	c.store(entryKey(scope, id), doc)
	return doc, nil
}

// putEntry writes doc back at the version it was read at. The cached copy
// is evicted whatever the outcome.
func (c *Client) putEntry(ctx context.Context, scope managecms.Scope, token string, id managecms.ContentID, doc []byte) error {
	defer c.evict(entryKey(scope, id))

	_, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        api.EntryPath(scope, id),
		token:       token,
		body:        bytes.NewReader(doc),
		version:     int(gjson.GetBytes(doc, "sys.version").Int()),
		contentType: "application/json",
		notFound:    managecms.ErrEntryNotFound,
	})
	return err
}

func isEmpty(result gjson.Result) bool {
	return !result.Exists() || managecms.IsEmptyRaw(json.RawMessage(result.Raw))
}

// UpdateField overwrites a field of an entry in the context's locale. The
// value is sent as is; the store validates it.
func (c *Client) UpdateField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, value managecms.FieldValue) error {
	fail := func(locale managecms.Locale, err error) error {
		return &managecms.MutationError{Op: managecms.OpUpdateField, ContentID: id, Field: field, Locale: locale, Err: err}
	}

	scope, token := c.target(mc)
	locale, err := c.resolveLocale(ctx, scope, token, mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}
	raw, err := managecms.EncodeValue(field, value)
	if err != nil {
		return fail(locale, err)
	}

	doc, err := c.fetchEntry(ctx, scope, token, id)
	if err != nil {
		return fail(locale, err)
	}

	path := fieldPath(field, locale)
	if mc.NoOverwrite && !isEmpty(gjson.GetBytes(doc, path)) {
		return fail(locale, managecms.ErrOverwriteNotAllowed)
	}

	doc, err = sjson.SetRawBytes(doc, path, raw)
	if err != nil {
		return fail(locale, fmt.Errorf("patch entry document: %w", err))
	}

	if mc.DryRun {
		c.logger.InfoContext(ctx, "Dry run, field not updated",
			"scope", scope.String(), "content_id", string(id), "field", string(field), "locale", locale.String())
		return nil
	}
	if err := c.putEntry(ctx, scope, token, id, doc); err != nil {
		return fail(locale, err)
	}
	return nil
}

// CopyField copies a field of an entry from one locale into the context's
// locale. A source without a value is a no-op.
func (c *Client) CopyField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, from managecms.Locale, onlyIfTargetEmpty bool) error {
	fail := func(locale managecms.Locale, err error) error {
		return &managecms.MutationError{Op: managecms.OpCopyField, ContentID: id, Field: field, Locale: locale, Err: err}
	}

	scope, token := c.target(mc)
	locale, err := c.resolveLocale(ctx, scope, token, mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	doc, err := c.fetchEntry(ctx, scope, token, id)
	if err != nil {
		return fail(locale, err)
	}

	from = c.sourceLocale(ctx, scope, token, from)
	if from == locale {
		return nil
	}

	source := gjson.GetBytes(doc, fieldPath(field, from))
	if isEmpty(source) {
		c.logger.DebugContext(ctx, "Source locale has no value, nothing to copy",
			"content_id", string(id), "field", string(field), "from", from.String())
		return nil
	}

	path := fieldPath(field, locale)
	if !isEmpty(gjson.GetBytes(doc, path)) {
		if onlyIfTargetEmpty {
			return nil
		}
		if mc.NoOverwrite {
			return fail(locale, managecms.ErrOverwriteNotAllowed)
		}
	}

	doc, err = sjson.SetRawBytes(doc, path, []byte(source.Raw))
	if err != nil {
		return fail(locale, fmt.Errorf("patch entry document: %w", err))
	}

	if mc.DryRun {
		c.logger.InfoContext(ctx, "Dry run, field not copied",
			"scope", scope.String(), "content_id", string(id), "field", string(field), "from", from.String(), "locale", locale.String())
		return nil
	}
	if err := c.putEntry(ctx, scope, token, id, doc); err != nil {
		return fail(locale, err)
	}
	return nil
}

// Entry returns the entry document as served by the API.
func (c *Client) Entry(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID) (json.RawMessage, error) {
	scope, token := c.target(mc)
	return c.entryDocument(ctx, scope, token, id)
}

// Field reads one field of an entry in the context's locale, or in the
// default locale when the context names none.
func (c *Client) Field(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType) (managecms.FieldValue, error) {
	scope, token := c.target(mc)
	var locale managecms.Locale
	if mc.Locale == "" {
		set, err := c.localeSet(ctx, scope, token)
		if err != nil {
			return nil, err
		}
		locale = set.defaultLocale
	} else {
		locale = c.sourceLocale(ctx, scope, token, mc.Locale)
	}

	doc, err := c.entryDocument(ctx, scope, token, id)
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(doc, fieldPath(field, locale))
	if isEmpty(result) {
		return nil, fmt.Errorf("entry %s field %s locale %s: %w", id, field, locale, managecms.ErrFieldNotFound)
	}
	return managecms.DecodeValue(field, json.RawMessage(result.Raw))
}
