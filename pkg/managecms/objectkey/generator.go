package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates the blob key for one locale variant of an asset file
	GenerateKey(fileID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Space       string
	Environment string
	AssetID     string
	Locale      string
	FileName    string
	ContentType string
}

// LocaleGenerator groups every variant of an asset under one prefix:
// assets/{asset}/{locale}/{fileID}_{filename}
type LocaleGenerator struct{}

func NewLocaleGenerator() *LocaleGenerator {
	return &LocaleGenerator{}
}

func (g *LocaleGenerator) GenerateKey(fileID uuid.UUID, metadata *KeyMetadata) string {
	if metadata == nil {
		return fmt.Sprintf("assets/%s", fileID)
	}

	asset := sanitizePathComponent(metadata.AssetID)
	if asset == "" {
		asset = "unassigned"
	}
	locale := sanitizePathComponent(metadata.Locale)
	if locale == "" {
		locale = "default"
	}

	name := fileID.String()
	if metadata.FileName != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("assets/%s/%s/%s", asset, locale, name)
}

// GitLikeGenerator provides Git-style sharded storage:
// files/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(fileID uuid.UUID, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(fileID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(id) {
		shardLength = 2
	}

	filename := id[shardLength:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("files/%s/%s", id[:shardLength], filename)
}

// ScopedGenerator isolates spaces and environments from each other:
// spaces/{space}/{environment}/{base key}
type ScopedGenerator struct {
	BaseGenerator      Generator
	DefaultSpace       string
	DefaultEnvironment string
}

func NewScopedGenerator(base Generator) *ScopedGenerator {
	return &ScopedGenerator{
		BaseGenerator:      base,
		DefaultSpace:       "default",
		DefaultEnvironment: "master",
	}
}

func (g *ScopedGenerator) GenerateKey(fileID uuid.UUID, metadata *KeyMetadata) string {
	space, env := g.DefaultSpace, g.DefaultEnvironment
	if metadata != nil {
		if metadata.Space != "" {
			space = sanitizePathComponent(metadata.Space)
		}
		if metadata.Environment != "" {
			env = sanitizePathComponent(metadata.Environment)
		}
	}
	return fmt.Sprintf("spaces/%s/%s/%s", space, env, g.BaseGenerator.GenerateKey(fileID, metadata))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(fileID uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(fileID uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(fileID uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(fileID, metadata)
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

func sanitizeFilename(filename string) string {
	return unsafeChars.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(unsafeChars.Replace(component))
}

// NewRecommendedGenerator returns the generator used when none is configured
func NewRecommendedGenerator() Generator {
	return NewScopedGenerator(NewLocaleGenerator())
}
