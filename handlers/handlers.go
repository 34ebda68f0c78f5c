// Package handlers exposes the cart over HTTP for the static storefront pages.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/norun9/storefront-cartservice/cart"
	"github.com/norun9/storefront-cartservice/catalog"
	"github.com/norun9/storefront-cartservice/view"
	"github.com/sirupsen/logrus"
)

const maxCardBytes = 1 << 20

// CartService is the cart behaviour the handlers drive.
type CartService interface {
	GetCart(ctx context.Context, scope string) (*cart.Cart, error)
	AddItem(ctx context.Context, scope string, cand cart.Candidate) (*cart.Cart, error)
	RemoveItem(ctx context.Context, scope, id string) (*cart.Cart, error)
	ChangeQty(ctx context.Context, scope, id string, delta int) (*cart.Cart, error)
}

// Handler serves the cart routes.
type Handler struct {
	carts CartService
	log   logrus.FieldLogger
}

// New creates a Handler.
func New(carts CartService, log logrus.FieldLogger) *Handler {
	return &Handler{carts: carts, log: log}
}

// NewRouter wires the cart routes, the static storefront under staticDir (when
// set) and the logging, session and recovery middleware.
func NewRouter(h *Handler, staticDir string) http.Handler {
	// Item ids are slugged titles and may hold "//" or "/./"; cleaning the path
	// would redirect them away from their route.
	r := mux.NewRouter().SkipClean(true)
	r.HandleFunc("/cart", h.cartPageHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/cart/panel", h.cartPanelHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/cart/count", h.countHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/cart/items", h.itemsHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/cart/add", h.addHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id:.+}/inc", h.changeQtyHandler(+1)).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id:.+}/dec", h.changeQtyHandler(-1)).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id:.+}/remove", h.removeHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id:.+}", h.removeHandler).Methods(http.MethodDelete)
	r.HandleFunc("/_healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	var handler http.Handler = &logHandler{log: h.log, next: r}
	handler = ensureSessionID(handler)
	return recoverer(h.log, handler)
}

func (h *Handler) cartPageHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.getCart(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, view.PageView(c))
}

func (h *Handler) cartPanelHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.getCart(w, r)
	if !ok {
		return
	}
	open := r.URL.Query().Get("open")
	h.writeView(w, r, view.PanelView(c, open == "1" || open == "true"))
}

func (h *Handler) countHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.getCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": c.TotalCount()})
}

func (h *Handler) itemsHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.getCart(w, r)
	if !ok {
		return
	}
	t := c.Totals()
	writeJSON(w, http.StatusOK, itemsResponse{
		Items: c.Items(),
		Count: c.TotalCount(),
		Totals: totalsResponse{
			Subtotal: t.Subtotal.String(),
			Tax:      t.Tax.String(),
			Shipping: t.Shipping.String(),
			Total:    t.Total.String(),
		},
	})
}

// addHandler takes the clicked product card's markup as the request body. A
// "view" action passes through untouched; anything else adds the product and
// answers with the opened panel.
func (h *Handler) addHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	if catalog.IsPassThrough(r.URL.Query().Get("action")) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	cand, err := catalog.Extract(http.MaxBytesReader(w, r.Body, maxCardBytes))
	if err != nil {
		log.WithField("error", err).Warn("could not read product card")
		writeError(w, http.StatusBadRequest, "invalid_card", err.Error())
		return
	}
	log.WithField("item", cand.ID).Info("adding item to cart")

	c, err := h.carts.AddItem(r.Context(), sessionFrom(r), cand)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeMutationView(w, r, c)
}

func (h *Handler) changeQtyHandler(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.carts.ChangeQty(r.Context(), sessionFrom(r), mux.Vars(r)["id"], delta)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		h.writeMutationView(w, r, c)
	}
}

func (h *Handler) removeHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), sessionFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeMutationView(w, r, c)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	c, err := h.carts.GetCart(r.Context(), sessionFrom(r))
	if err != nil {
		h.internalError(w, r, err)
		return nil, false
	}
	return c, true
}

// writeMutationView re-renders the surface the action came from. The panel is
// answered opened since its controls are only reachable while it is shown.
func (h *Handler) writeMutationView(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if view.ParseTarget(r.URL.Query().Get("view"), view.Panel) == view.Page {
		h.writeView(w, r, view.PageView(c))
		return
	}
	h.writeView(w, r, view.PanelView(c, true))
}

// writeView answers with the model as JSON when the client asks for it and as
// an HTML fragment otherwise.
func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, m view.Model) {
	w.Header().Set("X-Cart-Count", strconv.Itoa(m.Count))
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, m)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.WriteHTML(w); err != nil {
		requestLogger(r, h.log).WithField("error", err).Error("could not render cart view")
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r, h.log).WithField("error", err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
}

type totalsResponse struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

type itemsResponse struct {
	Items  []cart.LineItem `json:"items"`
	Count  int             `json:"count"`
	Totals totalsResponse  `json:"totals"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
