package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
)

// CatalogueHandler exposes the relationship catalogue currently in use.
type CatalogueHandler struct {
	store *catalogue.Store
}

func NewCatalogueHandler(store *catalogue.Store) *CatalogueHandler {
	return &CatalogueHandler{store: store}
}

type catalogueNode struct {
	ID                   string          `json:"id"`
	DataSource           string          `json:"data_source"`
	Dimension            string          `json:"dimension"`
	DimLabel             string          `json:"dim_label"`
	Metric               string          `json:"metric"`
	ReversesParentEffect bool            `json:"reverses_parent_effect,omitempty"`
	Children             []catalogueNode `json:"children,omitempty"`
}

// GET /api/v1/catalogue - nested JSON, or the rendered tree with ?format=text
func (h *CatalogueHandler) GetCatalogue(c *gin.Context) {
	cat := h.store.Current()
	if c.Query("format") == "text" {
		c.String(http.StatusOK, cat.String())
		return
	}

	roots := make([]catalogueNode, 0, len(cat.Roots()))
	for _, id := range cat.Roots() {
		roots = append(roots, view(cat, id))
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "nodes": cat.Len(), "roots": roots})
}

func view(cat *catalogue.Catalogue, id catalogue.NodeID) catalogueNode {
	n := cat.Node(id)
	out := catalogueNode{
		ID:                   n.ID,
		DataSource:           n.Matcher(catalogue.FieldDataSource).String(),
		Dimension:            n.Matcher(catalogue.FieldDimension).String(),
		DimLabel:             n.Matcher(catalogue.FieldDimLabel).String(),
		Metric:               n.Matcher(catalogue.FieldMetric).String(),
		ReversesParentEffect: n.ReversesParentEffect,
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, view(cat, child))
	}
	return out
}
