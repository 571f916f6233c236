package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"creator-checkout/internal/alerts"
	"creator-checkout/internal/domain"
	"creator-checkout/internal/payment"
	cartsvc "creator-checkout/internal/service/cart"
	surchargesvc "creator-checkout/internal/service/surcharge"
)

type handlers struct {
	logger *log.Logger
	deps   Deps

	alertMu sync.Mutex
	recent  []alerts.Alert
}

func newHandlers(logger *log.Logger, deps Deps) *handlers {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &handlers{logger: logger, deps: deps}
	if deps.Bus != nil {
		ch, _ := deps.Bus.Subscribe()
		go func() {
			for alert := range ch {
				h.alertMu.Lock()
				h.recent = append(h.recent, alert)
				if len(h.recent) > 20 {
					h.recent = h.recent[len(h.recent)-20:]
				}
				h.alertMu.Unlock()
			}
		}()
	}
	return h
}

// addItemRequest is the JSON shape of a buy link: reserved fields are
// structured, everything else rides along in rawQuery and becomes
// url_parameters.
type addItemRequest struct {
	Permalink         string `json:"permalink" binding:"required"`
	OptionID          string `json:"optionId"`
	Quantity          int    `json:"quantity"`
	Recurrence        string `json:"recurrence"`
	Rent              bool   `json:"rent"`
	PayInInstallments bool   `json:"payInInstallments"`
	PriceCents        int64  `json:"priceCents"`
	Referrer          string `json:"referrer"`
	AffiliateID       string `json:"affiliateId"`
	RecommendedBy     string `json:"recommendedBy"`
	RecommenderModel  string `json:"recommenderModelName"`
	CallStartTime     string `json:"callStartTime"`
	DiscountCode      string `json:"discountCode"`
	RawQuery          string `json:"rawQuery"`
}

func (r addItemRequest) params() (cartsvc.AddParams, error) {
	p := cartsvc.AddParams{
		OptionID:          r.OptionID,
		Quantity:          r.Quantity,
		Recurrence:        r.Recurrence,
		Rent:              r.Rent,
		PayInInstallments: r.PayInInstallments,
		PriceCents:        r.PriceCents,
		Referrer:          r.Referrer,
		AffiliateID:       r.AffiliateID,
		RecommendedBy:     r.RecommendedBy,
		RecommenderModel:  r.RecommenderModel,
	}
	if r.CallStartTime != "" {
		t, err := time.Parse(time.RFC3339, r.CallStartTime)
		if err != nil {
			return p, errors.New("callStartTime must be RFC3339")
		}
		p.CallStartTime = &t
	}
	if r.RawQuery != "" {
		values, err := url.ParseQuery(r.RawQuery)
		if err != nil {
			return p, errors.New("rawQuery is not a valid query string")
		}
		p.RawQuery = values
	}
	return p, nil
}

type createSessionRequest struct {
	SessionID     string          `json:"sessionId"`
	BuyerLoggedIn bool            `json:"buyerLoggedIn"`
	Item          *addItemRequest `json:"item"`
}

func (h *handlers) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.deps.Checkout.Create(c.Request.Context(), req.SessionID, req.BuyerLoggedIn)
	if err != nil {
		h.logger.Printf("httpserver: create session error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	view, err := h.deps.Checkout.View(sess.ID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	if req.Item != nil {
		params, perr := req.Item.params()
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		if err := h.deps.Checkout.AddItem(c.Request.Context(), view.ID, req.Item.Permalink, params, req.Item.DiscountCode); err != nil {
			h.writeAddItemError(c, err)
			return
		}
		view, _ = h.deps.Checkout.View(view.ID)
	}
	c.JSON(http.StatusCreated, view)
}

func (h *handlers) getSession(c *gin.Context) {
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := req.params()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Checkout.AddItem(c.Request.Context(), c.Param("id"), req.Permalink, params, req.DiscountCode); err != nil {
		h.writeAddItemError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateBuyerRequest struct {
	Contact *payment.ContactFields `json:"contact"`
	Method  *payment.Method        `json:"method"`
}

func (h *handlers) updateBuyer(c *gin.Context) {
	var req updateBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Checkout.UpdateBuyer(c.Request.Context(), c.Param("id"), req.Contact, req.Method); err != nil {
		h.writeSessionError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) submit(c *gin.Context) {
	if err := h.deps.Checkout.Submit(c.Request.Context(), c.Param("id")); err != nil {
		h.writeSessionError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type resolveOfferRequest struct {
	Accept bool `json:"accept"`
}

func (h *handlers) resolveOffer(c *gin.Context) {
	var req resolveOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Checkout.ResolveOffer(c.Request.Context(), c.Param("id"), req.Accept); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "no offer to resolve"})
			return
		}
		h.writeSessionError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type recaptchaRequest struct {
	Token     string `json:"token"`
	Cancelled bool   `json:"cancelled"`
}

func (h *handlers) recaptcha(c *gin.Context) {
	var req recaptchaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Checkout.Recaptcha(c.Request.Context(), c.Param("id"), req.Token, req.Cancelled); err != nil {
		h.writeSessionError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) cancel(c *gin.Context) {
	if err := h.deps.Checkout.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.writeSessionError(c, err)
		return
	}
	view, err := h.deps.Checkout.View(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// persistCart is the raw cart-mirror endpoint: an idempotent snapshot upsert
// keyed to the session. Failures are reported but the client treats them as
// non-fatal.
func (h *handlers) persistCart(c *gin.Context) {
	snapshot, err := io.ReadAll(c.Request.Body)
	if err != nil || len(snapshot) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart body required"})
		return
	}
	var cart domain.Cart
	if err := json.Unmarshal(snapshot, &cart); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart payload"})
		return
	}
	if err := h.deps.CartRepo.UpsertSnapshot(c.Request.Context(), c.Param("id"), snapshot); err != nil {
		h.logger.Printf("httpserver: persist cart session=%s error=%v", c.Param("id"), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cart could not be saved"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) surcharge(c *gin.Context) {
	var req surchargesvc.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quote, err := h.deps.Surcharges.Quote(c.Request.Context(), req)
	if err != nil {
		h.logger.Printf("httpserver: surcharge error=%v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "surcharge unavailable"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *handlers) affiliateStats(c *gin.Context) {
	stats, err := h.deps.Stats.AffiliateStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown affiliate"})
			return
		}
		h.logger.Printf("httpserver: affiliate stats id=%s error=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) searchProducts(c *gin.Context) {
	query := c.Query("q")
	results, err := h.deps.Search.Search(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrSuperseded) {
			// A newer keystroke won; this response must not repaint state.
			c.Status(http.StatusNoContent)
			return
		}
		h.logger.Printf("httpserver: search q=%q error=%v", query, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *handlers) recentAlerts(c *gin.Context) {
	h.alertMu.Lock()
	out := make([]alerts.Alert, len(h.recent))
	copy(out, h.recent)
	h.recent = h.recent[:0]
	h.alertMu.Unlock()
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

func (h *handlers) writeSessionError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.logger.Printf("httpserver: session error=%v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *handlers) writeAddItemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	default:
		h.logger.Printf("httpserver: add item error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
