package models

import (
	"fmt"
	"strings"
)

// Configuration holds the connection settings for the Azure OpenAI
// deployment. The JSON names match the persisted object.
type Configuration struct {
	Endpoint       string `json:"endpoint" validate:"required" jsonschema:"title=Endpoint,description=Azure OpenAI resource URL"`
	APIKey         string `json:"apiKey" validate:"required" jsonschema:"title=API key"`
	DeploymentName string `json:"deploymentName" validate:"required" jsonschema:"title=Deployment name,default=gpt-image-1"`
	APIVersion     string `json:"apiVersion" validate:"required" jsonschema:"title=API version,default=2025-04-01-preview"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		DeploymentName: DefaultDeploymentName,
		APIVersion:     DefaultAPIVersion,
	}
}

// Validate requires every field to be set before a request is allowed.
func (c Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrConfigIncomplete
	}
	return nil
}

func (c Configuration) IsComplete() bool {
	return c.Validate() == nil
}

// IsPersistable reports whether the configuration carries anything worth
// writing back to the store.
func (c Configuration) IsPersistable() bool {
	return c.APIKey != "" || c.Endpoint != ""
}

// ConfigPatch is a partial Configuration; nil fields are left unchanged.
type ConfigPatch struct {
	Endpoint       *string `json:"endpoint,omitempty"`
	APIKey         *string `json:"apiKey,omitempty"`
	DeploymentName *string `json:"deploymentName,omitempty"`
	APIVersion     *string `json:"apiVersion,omitempty"`
}

func (p ConfigPatch) Apply(c Configuration) Configuration {
	if p.Endpoint != nil {
		c.Endpoint = *p.Endpoint
	}
	if p.APIKey != nil {
		c.APIKey = *p.APIKey
	}
	if p.DeploymentName != nil {
		c.DeploymentName = *p.DeploymentName
	}
	if p.APIVersion != nil {
		c.APIVersion = *p.APIVersion
	}
	return c
}

func (p ConfigPatch) IsEmpty() bool {
	return p.Endpoint == nil && p.APIKey == nil && p.DeploymentName == nil && p.APIVersion == nil
}

// FullPatch returns a patch that overwrites every field with c's values.
func FullPatch(c Configuration) ConfigPatch {
	return ConfigPatch{
		Endpoint:       &c.Endpoint,
		APIKey:         &c.APIKey,
		DeploymentName: &c.DeploymentName,
		APIVersion:     &c.APIVersion,
	}
}

// Set parses one config form field.
func (p *ConfigPatch) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch normalizeKey(key) {
	case "endpoint":
		p.Endpoint = &value
	case "apikey", "key":
		p.APIKey = &value
	case "deploymentname", "deployment":
		p.DeploymentName = &value
	case "apiversion", "version":
		p.APIVersion = &value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	return nil
}

// MaskKey returns a masked version of the key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}
