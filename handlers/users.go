package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/vidshare/internal/categories"
	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/subscriptions"
	"fknsrs.biz/p/vidshare/internal/users"
	"fknsrs.biz/p/vidshare/internal/workflow"
	"fknsrs.biz/p/vidshare/models"
)

func Categories(rw http.ResponseWriter, r *http.Request) {
	a, err := categories.List(r.Context())
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, map[string][]models.Category{"items": a})
}

var User = idAction(http.StatusOK, func(r *http.Request, id int) (*users.Profile, error) {
	return users.GetOne(r.Context(), id)
})

type subscriptionState struct {
	Subscribed bool `json:"subscribed"`
}

var Subscribe = idAction(http.StatusOK, func(r *http.Request, id int) (*subscriptionState, error) {
	if err := subscriptions.Subscribe(r.Context(), id); err != nil {
		return nil, err
	}

	return &subscriptionState{Subscribed: true}, nil
})

var Unsubscribe = idAction(http.StatusOK, func(r *http.Request, id int) (*subscriptionState, error) {
	if err := subscriptions.Unsubscribe(r.Context(), id); err != nil {
		return nil, err
	}

	return &subscriptionState{Subscribed: false}, nil
})

func Subscriptions(rw http.ResponseWriter, r *http.Request) {
	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := subscriptions.List(r.Context(), request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func WorkflowRun(rw http.ResponseWriter, r *http.Request) {
	run, err := workflow.GetRun(r.Context(), mux.Vars(r)["runId"])
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, run)
}
