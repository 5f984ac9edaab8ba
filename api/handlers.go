package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"order-display/models"
	"order-display/services"
)

type addItemRequest struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
	Category string   `json:"category"`
	Image    *string  `json:"image"`
}

type itemRequest struct {
	ID       string `json:"id"`
	Quantity *int   `json:"quantity"`
}

type discountRequest struct {
	Discount *float64 `json:"discount"`
}

type paymentRequest struct {
	PaymentMethod  string         `json:"paymentMethod"`
	ReceivedAmount *float64       `json:"receivedAmount"`
	Change         *float64       `json:"change"`
	CustomerInfo   map[string]any `json:"customerInfo"`
}

func (p paymentRequest) info() models.PaymentInfo {
	return models.PaymentInfo{
		PaymentMethod:  p.PaymentMethod,
		ReceivedAmount: p.ReceivedAmount,
		Change:         p.Change,
		CustomerInfo:   p.CustomerInfo,
	}
}

type injectRequest struct {
	OrderID       string            `json:"orderId"`
	Items         []models.LineItem `json:"items"`
	Discount      float64           `json:"discount"`
	PaymentMethod string            `json:"paymentMethod"`
	CustomerInfo  map[string]any    `json:"customerInfo"`
}

type statusRequest struct {
	Status        string `json:"status"`
	EstimatedTime string `json:"estimatedTime"`
	Message       string `json:"message"`
}

type clearRequest struct {
	Reason string `json:"reason"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	ActiveOrder bool              `json:"activeOrder"`
	Hub         services.HubStats `json:"hub"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ActiveOrder: s.orders.Current() != nil,
		Hub:         s.orders.Stats(),
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeOrder(w, s.orders.Current())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	qty := 0
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			s.writeError(w, r, services.NewValidationError(services.ErrMsgQuantityPositive))
			return
		}
		qty = *req.Quantity
	}
	o, err := s.orders.AddItem(r.Context(), services.AddItemInput{
		ID:       req.ID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: qty,
		Category: req.Category,
		Image:    req.Image,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.RemoveItem(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.UpdateQuantity(r.Context(), req.ID, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.ApplyDiscount(r.Context(), req.Discount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleSaveCompleted(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.SaveCompletedOrder(r.Context(), req.info())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.CompleteOrder(r.Context(), req.info())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.FinalizeAndClear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, nil)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.Cancel(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, nil)
}

func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.InjectExternalOrder(r.Context(), &models.Order{
		OrderID:       req.OrderID,
		Items:         req.Items,
		Discount:      services.Round2(req.Discount),
		PaymentMethod: req.PaymentMethod,
		CustomerInfo:  req.CustomerInfo,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOrder(w, o)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	upd, err := s.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderId"), req.Status, req.EstimatedTime, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Order: s.orders.Current(), Status: &upd})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.orders.Clear(r.Context(), req.Reason)
	writeOrder(w, nil)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.orders.History(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, historyEnvelope{Success: true, History: list})
}

func (s *Server) handleHistoryRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orders.HistoryRecord(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Record: rec})
}
