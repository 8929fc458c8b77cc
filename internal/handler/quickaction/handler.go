package quickaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	"github.com/zhouzirui/supportpro/backend/pkg/utils"
)

// Handler 快捷操作菜单处理器
type Handler struct {
	actions quickaction.Store
}

// New 创建快捷操作处理器
func New(actions quickaction.Store) *Handler {
	return &Handler{
		actions: actions,
	}
}

// RegisterRoutes 注册菜单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/quick-actions", h.handleListActions)
}

func (h *Handler) handleListActions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.actions.List())
}
