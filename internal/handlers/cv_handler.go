package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/services"
)

type CVHandler struct {
	cvs         services.CVService
	search      services.SearchService
	maxFileSize int64
	log         *zap.Logger
}

func NewCVHandler(cvs services.CVService, search services.SearchService, maxFileSize int64, log *zap.Logger) *CVHandler {
	return &CVHandler{cvs: cvs, search: search, maxFileSize: maxFileSize, log: logger.OrNop(log)}
}

func idParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func optionalID(raw string) (*uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// HandleUpload handles POST /cv/upload
func (h *CVHandler) HandleUpload(c *fiber.Ctx) error {
	collectionID, ok := optionalID(c.FormValue("collection_id"))
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection_id")
	}

	fh, data, err := readUpload(c, "file", h.maxFileSize)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	cv, err := h.cvs.Upload(c.UserContext(), auth.GetClaims(c).UserID, fh.Filename, data, collectionID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cv)
}

// HandleList handles GET /cv/list
func (h *CVHandler) HandleList(c *fiber.Ctx) error {
	collectionID, ok := optionalID(c.Query("collection_id"))
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection_id")
	}

	cvs, err := h.cvs.List(c.UserContext(), auth.GetClaims(c).UserID, collectionID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(cvs)
}

// HandleContent handles GET /cv/:id/content
func (h *CVHandler) HandleContent(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}

	cv, err := h.cvs.Get(c.UserContext(), auth.GetClaims(c).UserID, id)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(models.CVContentResponse{
		ID:             cv.ID,
		Filename:       cv.Filename,
		ContentText:    cv.ContentText,
		ParsedMetadata: cv.ParsedMetadata,
	})
}

// HandleFile handles GET /cv/:id/file
func (h *CVHandler) HandleFile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}

	data, filename, err := h.cvs.File(c.UserContext(), auth.GetClaims(c).UserID, id)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	c.Attachment(filename)
	return c.Send(data)
}

// HandleDelete handles DELETE /cv/:id
func (h *CVHandler) HandleDelete(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}

	if err := h.cvs.Delete(c.UserContext(), auth.GetClaims(c).UserID, id); err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleAssignCollection handles PUT /cv/:id/collection/:cid
func (h *CVHandler) HandleAssignCollection(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}
	cid, ok := idParam(c, "cid")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection id")
	}

	cv, err := h.cvs.AssignCollection(c.UserContext(), auth.GetClaims(c).UserID, id, &cid)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(cv)
}

// HandleRemoveCollection handles DELETE /cv/:id/collection
func (h *CVHandler) HandleRemoveCollection(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}

	cv, err := h.cvs.AssignCollection(c.UserContext(), auth.GetClaims(c).UserID, id, nil)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(cv)
}

// HandleSearch handles POST /cv/search
func (h *CVHandler) HandleSearch(c *fiber.Ctx) error {
	if h.search == nil || !h.search.Enabled() {
		return respondError(c, fiber.StatusServiceUnavailable, services.ErrSearchDisabled.Error())
	}

	var req models.CVSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}
	if strings.TrimSpace(req.Query) == "" {
		return respondError(c, fiber.StatusBadRequest, "query: must not be empty")
	}

	ctx := c.UserContext()
	userID := auth.GetClaims(c).UserID
	hits, err := h.search.Search(ctx, userID, req.Query, req.TopK)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	// vectors may outlive their CV row briefly; keep only CVs that still exist
	ids := make([]uint, len(hits))
	for i, hit := range hits {
		ids[i] = hit.CVID
	}
	inputs, err := h.cvs.MatchInputs(ctx, userID, ids)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	names := make(map[uint]string, len(inputs))
	for _, in := range inputs {
		names[in.ID] = in.Filename
	}

	results := make([]models.CVSearchHit, 0, len(hits))
	for _, hit := range hits {
		name, ok := names[hit.CVID]
		if !ok {
			continue
		}
		hit.Filename = name
		results = append(results, hit)
	}
	return c.JSON(fiber.Map{"results": results})
}

// HandleCreateCollection handles POST /cv/collections
func (h *CVHandler) HandleCreateCollection(c *fiber.Ctx) error {
	var req models.CollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	collection, err := h.cvs.CreateCollection(c.UserContext(), auth.GetClaims(c).UserID, req)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(collection)
}

// HandleListCollections handles GET /cv/collections
func (h *CVHandler) HandleListCollections(c *fiber.Ctx) error {
	collections, err := h.cvs.ListCollections(c.UserContext(), auth.GetClaims(c).UserID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(collections)
}

// HandleGetCollection handles GET /cv/collections/:id
func (h *CVHandler) HandleGetCollection(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection id")
	}

	collection, err := h.cvs.GetCollection(c.UserContext(), auth.GetClaims(c).UserID, id)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(collection)
}

// HandleUpdateCollection handles PUT /cv/collections/:id
func (h *CVHandler) HandleUpdateCollection(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection id")
	}

	var req models.CollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	collection, err := h.cvs.UpdateCollection(c.UserContext(), auth.GetClaims(c).UserID, id, req)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(collection)
}

// HandleDeleteCollection handles DELETE /cv/collections/:id
func (h *CVHandler) HandleDeleteCollection(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid collection id")
	}

	deleted, err := h.cvs.DeleteCollection(c.UserContext(), auth.GetClaims(c).UserID, id)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"deleted_cvs": deleted})
}
