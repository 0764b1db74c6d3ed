// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/goblog/internal/blob"
	"github.com/olegiv/goblog/internal/imaging"
	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/render"
	"github.com/olegiv/goblog/internal/service"
	"github.com/olegiv/goblog/internal/store"
	"github.com/olegiv/goblog/internal/util"
)

// PostsHandler handles the post list and the create/edit forms.
type PostsHandler struct {
	db             *sql.DB
	queries        *store.Queries
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
	eventService   *service.EventService
	blobs          *blob.Store
	processor      *imaging.Processor
}

// NewPostsHandler creates a new PostsHandler.
func NewPostsHandler(db *sql.DB, renderer *render.Renderer, sm *scs.SessionManager, es *service.EventService, blobs *blob.Store) *PostsHandler {
	return &PostsHandler{
		db:             db,
		queries:        store.New(db),
		renderer:       renderer,
		sessionManager: sm,
		eventService:   es,
		blobs:          blobs,
		processor:      imaging.NewProcessor(),
	}
}

// postView is one post prepared for the list template.
type postView struct {
	Post     model.Post
	ImageURL string
	ThumbURL string
}

// homePageData is the template payload for the post list.
type homePageData struct {
	Posts []postView
}

// Home renders the post list, newest first.
func (h *PostsHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		http.NotFound(w, r)
		return
	}

	posts, err := h.queries.ListPosts(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list posts", "error", err)
		return
	}

	data := homePageData{Posts: make([]postView, 0, len(posts))}
	for _, p := range posts {
		view := postView{Post: p}
		if p.HasImage() {
			view.ImageURL = h.blobs.URL(p.ImagePath.String)
			view.ThumbURL = h.blobs.URL(blob.ThumbName(p.ImagePath.String))
		}
		data.Posts = append(data.Posts, view)
	}

	if err := h.renderer.Render(w, r, "index", render.TemplateData{
		Title: "Home Page",
		User:  user,
		Data:  data,
	}); err != nil {
		logAndInternalError(w, "failed to render post list", "error", err)
	}
}

// postPageData is the template payload for the post form.
type postPageData struct {
	Form     PostForm
	Errors   FormErrors
	Post     *model.Post
	ImageURL string
}

// NewForm renders the empty post form.
func (h *PostsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.renderPostForm(w, r, "Create Post", postPageData{})
}

// Create handles the post creation form submission.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		flashError(w, r, h.renderer, RouteNewPost, "Invalid form data")
		return
	}

	form, formErrs := parsePostForm(r)

	imageName, imgErr := h.processUpload(r)
	if imgErr != "" {
		formErrs["image"] = imgErr
	}

	if formErrs.HasErrors() {
		// Nothing may outlive a failed submission, including stored blobs.
		h.discardUpload(imageName)
		h.renderPostForm(w, r, "Create Post", postPageData{Form: form, Errors: formErrs})
		return
	}

	now := time.Now()
	params := store.CreatePostParams{
		Title:     form.Title,
		Body:      form.Body,
		ImagePath: util.NullStringFromValue(imageName),
		AuthorID:  user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var post model.Post
	err := h.withTx(r, func(qtx *store.Queries) error {
		var err error
		post, err = qtx.CreatePost(r.Context(), params)
		return err
	})
	if err != nil {
		h.discardUpload(imageName)
		logAndInternalError(w, "failed to create post", "error", err, "user_id", user.ID)
		return
	}

	_ = h.eventService.LogPostEvent(r.Context(), model.EventLevelInfo,
		"Post created", &user.ID, r, map[string]any{"post_id": post.ID, "title": post.Title})

	flashSuccess(w, r, h.renderer, redirectHome, "Post created")
}

// EditForm renders the post form pre-filled with an existing post.
func (h *PostsHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	post, ok := h.requirePost(w, r)
	if !ok {
		return
	}

	data := postPageData{
		Form: PostForm{Title: post.Title, Body: post.Body},
		Post: &post,
	}
	if post.HasImage() {
		data.ImageURL = h.blobs.URL(post.ImagePath.String)
	}

	h.renderPostForm(w, r, "Edit Post", data)
}

// Update handles the post edit form submission.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		http.NotFound(w, r)
		return
	}

	post, ok := h.requirePost(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		flashError(w, r, h.renderer, redirectHome, "Invalid form data")
		return
	}

	form, formErrs := parsePostForm(r)

	imageName, imgErr := h.processUpload(r)
	if imgErr != "" {
		formErrs["image"] = imgErr
	}

	if formErrs.HasErrors() {
		h.discardUpload(imageName)
		data := postPageData{Form: form, Errors: formErrs, Post: &post}
		if post.HasImage() {
			data.ImageURL = h.blobs.URL(post.ImagePath.String)
		}
		h.renderPostForm(w, r, "Edit Post", data)
		return
	}

	params := store.UpdatePostParams{
		Title:     form.Title,
		Body:      form.Body,
		ImagePath: post.ImagePath,
		AuthorID:  post.AuthorID,
		UpdatedAt: time.Now(),
		ID:        post.ID,
	}

	oldImage := ""
	if imageName != "" {
		params.ImagePath = util.NullStringFromValue(imageName)
		if post.HasImage() {
			oldImage = post.ImagePath.String
		}
	}

	err := h.withTx(r, func(qtx *store.Queries) error {
		return qtx.UpdatePost(r.Context(), params)
	})
	if err != nil {
		h.discardUpload(imageName)
		logAndInternalError(w, "failed to update post", "error", err, "post_id", post.ID)
		return
	}

	// The replaced image is unreferenced once the update committed.
	h.discardUpload(oldImage)

	_ = h.eventService.LogPostEvent(r.Context(), model.EventLevelInfo,
		"Post updated", &user.ID, r, map[string]any{"post_id": post.ID, "title": form.Title})

	flashSuccess(w, r, h.renderer, redirectHome, "Post updated")
}

// requirePost resolves the {id} route parameter to a post, answering
// 404 for malformed IDs and unknown posts.
func (h *PostsHandler) requirePost(w http.ResponseWriter, r *http.Request) (model.Post, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return model.Post{}, false
	}

	post, err := h.queries.GetPostByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
		} else {
			logAndInternalError(w, "failed to load post", "error", err, "post_id", id)
		}
		return model.Post{}, false
	}

	return post, true
}

// renderPostForm renders the shared create/edit template.
func (h *PostsHandler) renderPostForm(w http.ResponseWriter, r *http.Request, title string, data postPageData) {
	if err := h.renderer.Render(w, r, "post_form", render.TemplateData{
		Title: title,
		User:  middleware.GetUser(r),
		Data:  data,
	}); err != nil {
		logAndInternalError(w, "failed to render post form", "error", err)
	}
}

// withTx runs fn inside a database transaction.
func (h *PostsHandler) withTx(r *http.Request, fn func(qtx *store.Queries) error) error {
	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(h.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// processUpload runs an optional image upload through the processing
// pipeline and stores the web and thumbnail variants. It returns the
// stored name, or a user-facing validation message on failure. An
// absent file field is not an error.
func (h *PostsHandler) processUpload(r *http.Request) (string, string) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", ""
		}
		return "", "Could not read the uploaded file"
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	web, thumb, err := h.processor.Process(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		slog.Warn("rejected post image upload", "filename", header.Filename, "error", err)
		return "", "The uploaded file is not a supported image"
	}

	name, err := h.blobs.Save(header.Filename, imaging.Ext(web.Format), web.Data)
	if err != nil {
		slog.Error("failed to store post image", "error", err)
		return "", "Could not store the uploaded image"
	}

	if err := h.blobs.Put(blob.ThumbName(name), thumb.Data); err != nil {
		slog.Error("failed to store image thumbnail", "error", err, "name", name)
		// The full-size image is still usable without its thumbnail.
	}

	return name, ""
}

// discardUpload removes stored image variants that ended up unreferenced.
func (h *PostsHandler) discardUpload(name string) {
	if name == "" {
		return
	}
	if err := h.blobs.Delete(name); err != nil {
		slog.Error("failed to delete image blob", "error", err, "name", name)
	}
	if err := h.blobs.Delete(blob.ThumbName(name)); err != nil {
		slog.Error("failed to delete image thumbnail", "error", err, "name", name)
	}
}
