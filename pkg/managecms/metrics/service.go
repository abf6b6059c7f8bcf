package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// opReplaceAsset labels asset replacements, which bundle file copies and
// removals into one write.
const opReplaceAsset managecms.MutationOp = "replace_asset"

// Service instruments the gateway operations and asset replacements of a
// managecms.Service and passes everything else through.
type Service struct {
	managecms.Service
	gateway *Gateway
}

// NewService wraps svc, registering the gateway collectors on reg.
func NewService(svc managecms.Service, reg prometheus.Registerer) (*Service, error) {
	g, err := NewGateway(svc, reg)
	if err != nil {
		return nil, err
	}
	return &Service{Service: svc, gateway: g}, nil
}

func (s *Service) UpdateField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, value managecms.FieldValue) error {
	return s.gateway.UpdateField(ctx, mc, id, field, value)
}

func (s *Service) CopyField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, from managecms.Locale, onlyIfTargetEmpty bool) error {
	return s.gateway.CopyField(ctx, mc, id, field, from, onlyIfTargetEmpty)
}

func (s *Service) CopyAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID, from managecms.Locale) error {
	return s.gateway.CopyAssetFile(ctx, mc, id, from)
}

func (s *Service) RemoveAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID) error {
	return s.gateway.RemoveAssetFile(ctx, mc, id)
}

func (s *Service) ReplaceAsset(ctx context.Context, scope managecms.Scope, id managecms.AssetID, update managecms.AssetUpdate, expectedVersion int) (*managecms.Asset, error) {
	start := time.Now()
	asset, err := s.Service.ReplaceAsset(ctx, scope, id, update, expectedVersion)
	s.gateway.observe(opReplaceAsset, start, err)
	return asset, err
}
