package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"coffeeshop/internal/core"
	"coffeeshop/internal/modules/drinks"
	"coffeeshop/internal/modules/host"
)

type drinksResponse struct {
	Success bool        `json:"success"`
	Drinks  interface{} `json:"drinks"`
}

type deleteResponse struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}

func (a *Adapter) handleListDrinks(w http.ResponseWriter, r *http.Request) {
	list, err := a.drinks.List(r.Context())
	if err != nil {
		a.writeFailure(w, r, "drinks:list", err)
		return
	}
	short := make([]core.ShortDrink, 0, len(list))
	for _, d := range list {
		short = append(short, d.Short())
	}
	writeJSON(w, r, http.StatusOK, drinksResponse{Success: true, Drinks: short})
}

func (a *Adapter) handleListDrinksDetail(w http.ResponseWriter, r *http.Request) {
	list, err := a.drinks.List(r.Context())
	if err != nil {
		a.writeFailure(w, r, "drinks:list_detail", err)
		return
	}
	long := make([]core.Drink, 0, len(list))
	for _, d := range list {
		long = append(long, d.Long())
	}
	writeJSON(w, r, http.StatusOK, drinksResponse{Success: true, Drinks: long})
}

func (a *Adapter) handleCreateDrink(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		a.writeFailure(w, r, "drinks:create", err)
		return
	}
	d, err := a.drinks.Create(r.Context(), in)
	if err != nil {
		a.writeFailure(w, r, "drinks:create", err)
		a.writeAudit(r.Context(), "drinks:create", "error", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, drinksResponse{Success: true, Drinks: []core.Drink{d.Long()}})
	a.writeAudit(r.Context(), "drinks:create", "ok", map[string]interface{}{"id": d.ID, "title": d.Title})
}

func (a *Adapter) handleUpdateDrink(w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		a.writeFailure(w, r, "drinks:update", err)
		return
	}
	d, err := a.drinks.Update(r.Context(), id, in)
	if err != nil {
		a.writeFailure(w, r, "drinks:update", err)
		a.writeAudit(r.Context(), "drinks:update", "error", map[string]int64{"id": id})
		return
	}
	writeJSON(w, r, http.StatusOK, drinksResponse{Success: true, Drinks: []core.Drink{d.Long()}})
	a.writeAudit(r.Context(), "drinks:update", "ok", map[string]int64{"id": id})
}

func (a *Adapter) handleDeleteDrink(w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound)
		return
	}
	deleted, err := a.drinks.Delete(r.Context(), id)
	if err != nil {
		a.writeFailure(w, r, "drinks:delete", err)
		a.writeAudit(r.Context(), "drinks:delete", "error", map[string]int64{"id": id})
		return
	}
	writeJSON(w, r, http.StatusOK, deleteResponse{Success: true, Delete: deleted})
	a.writeAudit(r.Context(), "drinks:delete", "ok", map[string]int64{"id": id})
}

type healthResponse struct {
	Success   bool         `json:"success"`
	Status    string       `json:"status"`
	Host      *host.Status `json:"host,omitempty"`
	HostError string       `json:"host_error,omitempty"`
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			a.logger.Error("health: store ping failed", "err", err)
			writeError(w, r, http.StatusServiceUnavailable)
			return
		}
	}
	resp := healthResponse{Success: true, Status: "ok"}
	if a.probe != nil {
		probeCtx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		st, err := a.probe.Status(probeCtx)
		if err != nil {
			resp.HostError = err.Error()
		} else {
			resp.Host = &st
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func drinkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeInput(r *http.Request) (drinks.Input, error) {
	var in drinks.Input
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return drinks.Input{}, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return drinks.Input{}, fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return drinks.Input{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return drinks.Input{}, fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return in, nil
}
