package fhir

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SearchParam describes a search parameter supported on a resource type.
type SearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

// CapabilityConfig holds top-level server metadata for the CapabilityStatement.
type CapabilityConfig struct {
	ServerName    string
	ServerVersion string
	FHIRVersion   string
	Publisher     string
	Description   string
	BaseURL       string
	Formats       []string
}

// ResourceCapability is what a domain module registers for one resource type.
type ResourceCapability struct {
	Type         string
	Profile      string
	Interactions []string
	SearchParams []SearchParam
}

// CapabilityBuilder accumulates resource registrations from domain modules so
// the /fhir/metadata response reflects only what is actually served.
type CapabilityBuilder struct {
	mu        sync.RWMutex
	config    CapabilityConfig
	resources map[string]ResourceCapability
	now       func() time.Time
}

func NewCapabilityBuilder(cfg CapabilityConfig) *CapabilityBuilder {
	if cfg.ServerName == "" {
		cfg.ServerName = "LIMS"
	}
	if cfg.FHIRVersion == "" {
		cfg.FHIRVersion = "4.0.1"
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{"application/fhir+json", "json"}
	}
	return &CapabilityBuilder{
		config:    cfg,
		resources: make(map[string]ResourceCapability),
		now:       time.Now,
	}
}

// AddResource registers or replaces the capability of a resource type.
func (b *CapabilityBuilder) AddResource(rc ResourceCapability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resources[rc.Type] = rc
}

// ResourceTypes returns the registered types in alphabetical order.
func (b *CapabilityBuilder) ResourceTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]string, 0, len(b.resources))
	for rt := range b.resources {
		types = append(types, rt)
	}
	sort.Strings(types)
	return types
}

func (b *CapabilityBuilder) Build() map[string]interface{} {
	types := b.ResourceTypes()

	b.mu.RLock()
	defer b.mu.RUnlock()

	resources := make([]map[string]interface{}, 0, len(types))
	for _, rt := range types {
		resources = append(resources, buildResourceEntry(b.resources[rt]))
	}

	description := b.config.Description
	if description == "" {
		description = b.config.ServerName + " FHIR R4 endpoint"
	}

	cs := map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         b.now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"fhirVersion":  b.config.FHIRVersion,
		"format":       b.config.Formats,
		"software": map[string]string{
			"name":    b.config.ServerName,
			"version": b.config.ServerVersion,
		},
		"implementation": map[string]string{
			"description": description,
			"url":         b.config.BaseURL,
		},
		"rest": []map[string]interface{}{{
			"mode":     "server",
			"resource": resources,
		}},
	}
	if b.config.Publisher != "" {
		cs["publisher"] = b.config.Publisher
	}
	return cs
}

func buildResourceEntry(rc ResourceCapability) map[string]interface{} {
	interactions := make([]map[string]string, len(rc.Interactions))
	for i, code := range rc.Interactions {
		interactions[i] = map[string]string{"code": code}
	}
	entry := map[string]interface{}{
		"type":        rc.Type,
		"interaction": interactions,
		"versioning":  "versioned",
		"readHistory": false,
	}
	if rc.Profile != "" {
		entry["profile"] = rc.Profile
	}
	if len(rc.SearchParams) > 0 {
		params := make([]map[string]string, len(rc.SearchParams))
		for i, sp := range rc.SearchParams {
			p := map[string]string{"name": sp.Name, "type": sp.Type}
			if sp.Documentation != "" {
				p["documentation"] = sp.Documentation
			}
			params[i] = p
		}
		entry["searchParam"] = params
	}
	return entry
}

type CapabilityHandler struct {
	builder *CapabilityBuilder
}

func NewCapabilityHandler(builder *CapabilityBuilder) *CapabilityHandler {
	return &CapabilityHandler{builder: builder}
}

func (h *CapabilityHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.GetMetadata)
}

// GetMetadata returns the full CapabilityStatement.
func (h *CapabilityHandler) GetMetadata(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/fhir+json")
	return c.JSON(http.StatusOK, h.builder.Build())
}
