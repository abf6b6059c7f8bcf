package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const opUploadAssetFile managecms.MutationOp = "upload_asset_file"

func (c *Client) assetDocument(ctx context.Context, scope managecms.Scope, token string, id managecms.AssetID) ([]byte, error) {
	return c.do(ctx, request{
		method:   http.MethodGet,
		path:     api.AssetPath(scope, id),
		token:    token,
		notFound: managecms.ErrAssetNotFound,
	})
}

func (c *Client) putAsset(ctx context.Context, scope managecms.Scope, token string, id managecms.AssetID, doc []byte) error {
	_, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        api.AssetPath(scope, id),
		token:       token,
		body:        bytes.NewReader(doc),
		version:     int(gjson.GetBytes(doc, "sys.version").Int()),
		contentType: "application/json",
		notFound:    managecms.ErrAssetNotFound,
	})
	return err
}

// CopyAssetFile points the context locale's file at the variant of from;
// the store duplicates the binary.
func (c *Client) CopyAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID, from managecms.Locale) error {
	fail := func(locale managecms.Locale, err error) error {
		return &managecms.AssetError{Op: managecms.OpCopyAssetFile, AssetID: id, Locale: locale, Err: err}
	}

	scope, token := c.target(mc)
	locale, err := c.resolveLocale(ctx, scope, token, mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	doc, err := c.assetDocument(ctx, scope, token, id)
	if err != nil {
		return fail(locale, err)
	}

	from = c.sourceLocale(ctx, scope, token, from)
	source := gjson.GetBytes(doc, filePath(from))
	if !source.Exists() {
		return fail(locale, fmt.Errorf("%w: no file for locale %s", managecms.ErrAssetFileNotFound, from))
	}
	if from == locale {
		return nil
	}

	path := filePath(locale)
	if mc.NoOverwrite && gjson.GetBytes(doc, path).Exists() {
		return fail(locale, managecms.ErrOverwriteNotAllowed)
	}

	doc, err = sjson.SetRawBytes(doc, path, []byte(source.Raw))
	if err != nil {
		return fail(locale, fmt.Errorf("patch asset document: %w", err))
	}

	if mc.DryRun {
		c.logger.InfoContext(ctx, "Dry run, asset file not copied",
			"scope", scope.String(), "asset_id", string(id), "from", from.String(), "locale", locale.String())
		return nil
	}
	if err := c.putAsset(ctx, scope, token, id, doc); err != nil {
		return fail(locale, err)
	}
	return nil
}

// RemoveAssetFile drops the context locale's file from the asset document.
func (c *Client) RemoveAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID) error {
	fail := func(locale managecms.Locale, err error) error {
		return &managecms.AssetError{Op: managecms.OpRemoveAssetFile, AssetID: id, Locale: locale, Err: err}
	}

	scope, token := c.target(mc)
	locale, err := c.resolveLocale(ctx, scope, token, mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	doc, err := c.assetDocument(ctx, scope, token, id)
	if err != nil {
		return fail(locale, err)
	}

	path := filePath(locale)
	if !gjson.GetBytes(doc, path).Exists() {
		return nil
	}

	doc, err = sjson.DeleteBytes(doc, path)
	if err != nil {
		return fail(locale, fmt.Errorf("patch asset document: %w", err))
	}

	if mc.DryRun {
		c.logger.InfoContext(ctx, "Dry run, asset file not removed",
			"scope", scope.String(), "asset_id", string(id), "locale", locale.String())
		return nil
	}
	if err := c.putAsset(ctx, scope, token, id, doc); err != nil {
		return fail(locale, err)
	}
	return nil
}

// UploadAssetFile uploads the bytes of r as the context locale's variant of
// an existing asset.
func (c *Client) UploadAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID, fileName, contentType string, r io.Reader) error {
	scope, token := c.target(mc)
	locale, err := c.resolveLocale(ctx, scope, token, mc.Locale)
	if err != nil {
		return &managecms.AssetError{Op: opUploadAssetFile, AssetID: id, Locale: mc.Locale, Err: err}
	}

	if mc.DryRun {
		c.logger.InfoContext(ctx, "Dry run, asset file not uploaded",
			"scope", scope.String(), "asset_id", string(id), "locale", locale.String(), "file_name", fileName)
		return nil
	}

	_, err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        api.FileURL(scope, id, locale),
		token:       token,
		body:        r,
		contentType: contentType,
		headers:     map[string]string{api.FileNameHeader: fileName},
		notFound:    managecms.ErrAssetNotFound,
	})
	if err != nil {
		return &managecms.AssetError{Op: opUploadAssetFile, AssetID: id, Locale: locale, Err: err}
	}
	return nil
}
