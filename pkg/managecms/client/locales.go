package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tidwall/gjson"
)

type localeSet struct {
	defaultLocale managecms.Locale
	locales       []managecms.Locale
}

func (c *Client) localeSet(ctx context.Context, scope managecms.Scope, token string) (*localeSet, error) {
	key := "locales:" + scope.String()
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(*localeSet), nil
		}
	}

	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   api.ScopePath(scope) + "/locales",
		token:  token,
	})
	if err != nil {
		return nil, fmt.Errorf("list locales: %w", err)
	}

	set := &localeSet{}
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		code := managecms.Locale(item.Get("code").String())
		set.locales = append(set.locales, code)
		if item.Get("default").Bool() {
			set.defaultLocale = code
		}
		return true
	})
	if set.defaultLocale == "" && len(set.locales) > 0 {
		set.defaultLocale = set.locales[0]
	}

	if c.cache != nil {
		c.cache.SetDefault(key, set)
	}
	return set, nil
}

// DefaultLocale returns the default locale of the client's scope
func (c *Client) DefaultLocale(ctx context.Context) (managecms.Locale, error) {
	set, err := c.localeSet(ctx, c.scope, c.token)
	if err != nil {
		return "", err
	}
	return set.defaultLocale, nil
}

// Locales returns the locales of the client's scope
func (c *Client) Locales(ctx context.Context) ([]managecms.Locale, error) {
	set, err := c.localeSet(ctx, c.scope, c.token)
	if err != nil {
		return nil, err
	}
	return append([]managecms.Locale(nil), set.locales...), nil
}

// resolveLocale maps l onto the store's spelling of the locale.
func (c *Client) resolveLocale(ctx context.Context, scope managecms.Scope, token string, l managecms.Locale) (managecms.Locale, error) {
	if strings.TrimSpace(string(l)) == "" {
		return "", managecms.ErrMissingLocale
	}
	set, err := c.localeSet(ctx, scope, token)
	if err != nil {
		return "", err
	}
	for _, configured := range set.locales {
		if strings.EqualFold(string(configured), string(l)) {
			return configured, nil
		}
	}
	return "", fmt.Errorf("%w: %s", managecms.ErrUnknownLocale, l)
}

// sourceLocale resolves a copy source leniently.
func (c *Client) sourceLocale(ctx context.Context, scope managecms.Scope, token string, l managecms.Locale) managecms.Locale {
	if resolved, err := c.resolveLocale(ctx, scope, token, l); err == nil {
		return resolved
	}
	return l
}
