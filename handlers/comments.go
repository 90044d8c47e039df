package handlers

import (
	"net/http"

	"fknsrs.biz/p/vidshare/internal/comments"
	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/reactions"
	"fknsrs.biz/p/vidshare/models"
)

func VideoComments(rw http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	parentID, err := intQuery(r, "parentId")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	var parent *int
	if parentID != 0 {
		parent = &parentID
	}

	page, err := comments.List(r.Context(), id, parent, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func CreateComment(rw http.ResponseWriter, r *http.Request) {
	var in comments.CreateInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(rw, r, err)
		return
	}

	c, err := comments.Create(r.Context(), in)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusCreated, c)
}

var DeleteComment = idAction(http.StatusOK, func(r *http.Request, id int) (*models.Comment, error) {
	return comments.Remove(r.Context(), id)
})

var LikeComment = idAction(http.StatusOK, func(r *http.Request, id int) (*reactions.State, error) {
	return reactions.ToggleComment(r.Context(), id, models.ReactionLike)
})

var DislikeComment = idAction(http.StatusOK, func(r *http.Request, id int) (*reactions.State, error) {
	return reactions.ToggleComment(r.Context(), id, models.ReactionDislike)
})
