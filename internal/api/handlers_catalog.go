package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/importer"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

type mapPriceEntry struct {
	UPC         string          `json:"upc"`
	MAPPrice    decimal.Decimal `json:"map_price"`
	ProductName string          `json:"product_name"`
}

type upsertMAPPricesRequest struct {
	Category string          `json:"category" binding:"required"`
	Prices   []mapPriceEntry `json:"prices"`
}

type addUPCsRequest struct {
	Category    string   `json:"category" binding:"required"`
	Identifiers []string `json:"identifiers"`
}

// ListMAPPrices returns a page of price floors for a category. An optional
// search term matches identifier or product name.
func (h *Handler) ListMAPPrices(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}
	search := strings.TrimSpace(c.Query("search"))
	limit, offset := pagination(c)

	prices, err := h.mapPrices.List(c.Request.Context(), category, search, limit, offset)
	if err != nil {
		h.respondError(c, err, "list MAP prices")
		return
	}
	total, err := h.mapPrices.Count(c.Request.Context(), category, search)
	if err != nil {
		h.respondError(c, err, "count MAP prices")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"map_prices": prices,
		"count":      len(prices),
		"total":      total,
	})
}

// UpsertMAPPrices inserts or updates price floors in bulk. The request is
// all-or-nothing: one invalid entry rejects the whole batch.
func (h *Handler) UpsertMAPPrices(c *gin.Context) {
	var req upsertMAPPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Prices) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prices must not be empty"})
		return
	}

	prices := make([]*domain.MAPPrice, 0, len(req.Prices))
	seen := make(map[string]struct{}, len(req.Prices))
	for i, entry := range req.Prices {
		row := importer.MAPRow{
			Row:         i,
			Identifier:  strings.TrimSpace(entry.UPC),
			MAPPrice:    entry.MAPPrice.String(),
			ProductName: strings.TrimSpace(entry.ProductName),
		}
		if msg := importer.ValidateMAPRow(row); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("prices[%d]: %s", i, msg)})
			return
		}
		if _, dup := seen[row.Identifier]; dup {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("prices[%d]: duplicate upc %s", i, row.Identifier)})
			return
		}
		seen[row.Identifier] = struct{}{}

		price, err := importer.ToMAPPrice(row, category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("prices[%d]: %s", i, err.Error())})
			return
		}
		prices = append(prices, price)
	}

	if err := h.mapPrices.UpsertMany(c.Request.Context(), prices); err != nil {
		h.respondError(c, err, "upsert MAP prices")
		return
	}

	h.logger.Info("MAP prices upserted via API",
		logger.String("category", string(category)),
		logger.Int("count", len(prices)),
	)
	c.JSON(http.StatusOK, gin.H{"upserted": len(prices)})
}

// DeleteMAPPrice removes one price floor.
func (h *Handler) DeleteMAPPrice(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}

	if err := h.mapPrices.Delete(c.Request.Context(), category, c.Param("identifier")); err != nil {
		h.respondError(c, err, "delete MAP price")
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportMAPPrices applies an uploaded MAP price spreadsheet.
func (h *Handler) ImportMAPPrices(c *gin.Context) {
	category, file, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.importer.ImportMAPPrices(c.Request.Context(), category, file)
	if err != nil {
		h.respondError(c, err, "import MAP prices")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListUPCs returns a page of roster entries for a category.
func (h *Handler) ListUPCs(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	records, err := h.upcs.List(c.Request.Context(), category, limit, offset)
	if err != nil {
		h.respondError(c, err, "list UPCs")
		return
	}
	total, err := h.upcs.Count(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err, "count UPCs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upcs":  records,
		"count": len(records),
		"total": total,
	})
}

// AddUPCs merges identifiers into a category roster.
func (h *Handler) AddUPCs(c *gin.Context) {
	var req addUPCsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Identifiers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifiers must not be empty"})
		return
	}

	identifiers := make([]string, 0, len(req.Identifiers))
	seen := make(map[string]struct{}, len(req.Identifiers))
	for i, raw := range req.Identifiers {
		row := importer.UPCRow{Row: i, Identifier: strings.TrimSpace(raw)}
		if msg := importer.ValidateUPCRow(row); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("identifiers[%d]: %s", i, msg)})
			return
		}
		// Repeated identifiers collapse to one roster entry.
		if _, dup := seen[row.Identifier]; dup {
			continue
		}
		seen[row.Identifier] = struct{}{}
		identifiers = append(identifiers, row.Identifier)
	}

	if err := h.upcs.AddMany(c.Request.Context(), category, identifiers); err != nil {
		h.respondError(c, err, "add UPCs")
		return
	}

	h.logger.Info("UPCs added via API",
		logger.String("category", string(category)),
		logger.Int("count", len(identifiers)),
	)
	c.JSON(http.StatusCreated, gin.H{"added": len(identifiers)})
}

// DeleteUPC removes one identifier from a category roster.
func (h *Handler) DeleteUPC(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}

	if err := h.upcs.Delete(c.Request.Context(), category, c.Param("identifier")); err != nil {
		h.respondError(c, err, "delete UPC")
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportUPCs applies an uploaded UPC roster spreadsheet. With replace=true the
// uploaded file becomes the entire roster for the category.
func (h *Handler) ImportUPCs(c *gin.Context) {
	category, file, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.importer.ImportUPCs(c.Request.Context(), category, file, boolParam(c, "replace"))
	if err != nil {
		h.respondError(c, err, "import UPCs")
		return
	}
	c.JSON(http.StatusOK, result)
}

// openUpload extracts the spreadsheet from a multipart form and resolves the
// target category from the form or query string.
func (h *Handler) openUpload(c *gin.Context) (domain.Category, multipart.File, bool) {
	raw := c.PostForm("category")
	if raw == "" {
		raw = c.Query("category")
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category form field is required"})
		return "", nil, false
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", nil, false
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return "", nil, false
	}
	if header.Size > maxImportBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte limit", maxImportBytes),
		})
		return "", nil, false
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, err, "open uploaded file")
		return "", nil, false
	}
	return category, file, true
}

// boolParam reads a boolean flag from the form or query string.
func boolParam(c *gin.Context, name string) bool {
	raw := c.PostForm(name)
	if raw == "" {
		raw = c.Query(name)
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
