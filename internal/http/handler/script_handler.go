package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/visitrack/visitrack/internal/http/view"
	"go.uber.org/zap"
)

// ScriptDeps groups dependencies required by the collector script handler.
type ScriptDeps struct {
	Logger        *zap.Logger
	PublicBaseURL string
	Source        string
	DecorateHosts []string
}

// ScriptHandler serves the browser collector. The script is rendered per
// request so per-domain parameters can be baked in.
type ScriptHandler struct {
	logger        *zap.Logger
	publicBaseURL string
	source        string
	decorateHosts []string
}

// NewScriptHandler creates a script handler with the provided dependencies.
func NewScriptHandler(deps ScriptDeps) *ScriptHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptHandler{
		logger:        logger,
		publicBaseURL: deps.PublicBaseURL,
		source:        deps.Source,
		decorateHosts: deps.DecorateHosts,
	}
}

// Register wires script routes onto the provided router.
func (h *ScriptHandler) Register(router fiber.Router) {
	router.Get("/px.js", h.Serve)
}

// Serve handles GET /px.js?domain_id=
func (h *ScriptHandler) Serve(c *fiber.Ctx) error {
	domainID := ""
	if id := c.QueryInt("domain_id"); id > 0 {
		domainID = strconv.Itoa(id)
	}

	js, err := view.RenderPixelScript(view.PixelScriptData{
		Endpoint:      h.publicBaseURL,
		DomainID:      domainID,
		Source:        h.source,
		DecorateHosts: h.decorateHosts,
	})
	if err != nil {
		h.logger.Error("failed to render collector script", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Set("Cache-Control", "public, max-age=300")
	return c.
		Type("js", "utf-8").
		SendString(js)
}
