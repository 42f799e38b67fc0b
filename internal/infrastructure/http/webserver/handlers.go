package webserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/enchantedleftovers/web/internal/infrastructure/leftoverapi"
	"github.com/enchantedleftovers/web/internal/infrastructure/spoonacular"
	"github.com/enchantedleftovers/web/pkg/apperrors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleLoginPage renders the combined login/register form. The register
// variant is the same page with different fields visible, toggled by the
// mode query parameter, not a separate navigation.
func (s *WebServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	// Authenticated users have no business on the login page
	if session.Authenticated() && !tokenExpired(session.Token) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	flashes := session.ConsumeFlashes()
	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
	}

	s.renderTemplate(w, "login", map[string]interface{}{
		"Title":    "Login - " + s.config.App.Name,
		"Register": r.URL.Query().Get("mode") == "register",
		"Flashes":  flashes,
	})
}

// handleLogin authenticates against the backend and stores the token
func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	token, err := s.api.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Info("Login failed", zap.Error(err))
		s.renderTemplate(w, "login", map[string]interface{}{
			"Title":    "Login - " + s.config.App.Name,
			"Register": false,
			"Error":    apperrors.UserMessage(err, "Authentication failed"),
			"Email":    email,
		})
		return
	}

	s.establishSession(w, r, token)
}

// handleRegister creates an account and stores the returned token
func (s *WebServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	reg := leftoverapi.Registration{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Role:     r.FormValue("role"),
	}
	if reg.Role != "admin" {
		reg.Role = "user"
	}

	token, err := s.api.Register(r.Context(), reg)
	if err != nil {
		s.logger.Info("Registration failed", zap.Error(err))
		s.renderTemplate(w, "login", map[string]interface{}{
			"Title":    "Register - " + s.config.App.Name,
			"Register": true,
			"Error":    apperrors.UserMessage(err, "Authentication failed"),
			"Name":     reg.Name,
			"Email":    reg.Email,
		})
		return
	}

	s.establishSession(w, r, token)
}

// establishSession stores a fresh token on the session and enters the
// authenticated area. A failed auth call never reaches here, so the session
// is only ever mutated on success.
func (s *WebServer) establishSession(w http.ResponseWriter, r *http.Request, token string) {
	session := sessionFromContext(r.Context())
	session.Token = token

	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the session and returns to the login page. The backend
// is not called; the token is simply forgotten.
func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	session.Clear()

	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleHome renders the search form, the current search results, and the
// saved recipe list. Search results survive only in-app navigation: a fresh
// entry (no from marker) starts with an empty list, while the detail page's
// back link and the post-action redirects carry the marker so the session's
// results are re-attached. The saved list is re-fetched on every render so it
// always reflects the backend's state.
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	if r.URL.Query().Get("from") == "" && session.Results != nil {
		session.Results = nil
	}

	saved, err := s.api.SavedRecipes(r.Context(), session.Token)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.forceLogin(w, r, session, "Your session has expired. Please log in again.")
			return
		}
		// Mirror of the original behavior: a failed saved-list fetch is
		// logged and the section renders empty
		s.logger.Error("Error fetching saved recipes", zap.Error(err))
	}

	flashes := session.ConsumeFlashes()
	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
	}

	s.renderTemplate(w, "home", map[string]interface{}{
		"Title":   s.config.App.Name,
		"Results": session.Results,
		"Saved":   saved,
		"Flashes": flashes,
	})
}

// handleSearch runs an ingredient search through the backend passthrough and
// replaces the session's results list with the response
func (s *WebServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	ingredients := strings.TrimSpace(r.FormValue("ingredients"))
	if ingredients == "" {
		session.AddFlash("warning", "Please enter ingredients to search")
		s.saveAndRedirect(w, r, session, "/?from=search")
		return
	}

	recipes, err := s.api.Search(r.Context(), session.Token, ingredients)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.forceLogin(w, r, session, "Your session has expired. Please log in again.")
			return
		}
		session.AddFlash("error", apperrors.UserMessage(err, "Error searching recipes"))
		s.saveAndRedirect(w, r, session, "/?from=search")
		return
	}

	session.Results = recipes
	s.saveAndRedirect(w, r, session, "/?from=search")
}

// handleSave posts a normalized record to the backend's save endpoint. The
// redirect back to home re-fetches the saved list, so the page always shows
// the backend's current saved set.
func (s *WebServer) handleSave(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		session.AddFlash("error", "Error saving recipe")
		s.saveAndRedirect(w, r, session, "/?from=save")
		return
	}

	sourceURL := r.FormValue("sourceUrl")
	if sourceURL == "" {
		sourceURL = spoonacular.PublicRecipeURL(id)
	}

	req := leftoverapi.SaveRecipeRequest{
		Title:         r.FormValue("title"),
		Image:         r.FormValue("image"),
		SourceURL:     sourceURL,
		SpoonacularID: id,
	}

	if err := s.api.SaveRecipe(r.Context(), session.Token, req); err != nil {
		if apperrors.IsUnauthorized(err) {
			s.forceLogin(w, r, session, "Please log in to save recipes")
			return
		}
		s.logger.Error("Error saving recipe", zap.Error(err))
		session.AddFlash("error", apperrors.UserMessage(err, "Error saving recipe"))
		s.saveAndRedirect(w, r, session, "/?from=save")
		return
	}

	session.AddFlash("success", "Recipe saved!")
	s.saveAndRedirect(w, r, session, "/?from=save")
}

// handleDelete removes a saved recipe. Deleting an id the backend no longer
// has is still a success; the re-fetch on redirect settles the list either way.
func (s *WebServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := s.api.DeleteSavedRecipe(r.Context(), session.Token, id)
	if err != nil && !apperrors.Is(err, apperrors.CodeNotFound) {
		if apperrors.IsUnauthorized(err) {
			s.forceLogin(w, r, session, "Your session has expired. Please log in again.")
			return
		}
		s.logger.Error("Error deleting recipe", zap.Error(err), zap.String("id", id))
		session.AddFlash("error", apperrors.UserMessage(err, "Error deleting recipe"))
		s.saveAndRedirect(w, r, session, "/?from=delete")
		return
	}

	session.AddFlash("success", "Deleted")
	s.saveAndRedirect(w, r, session, "/?from=delete")
}

// handleRecipeDetail fetches the full recipe from the public API and renders
// it. A failed fetch is logged and leaves the page in its loading state; the
// back link re-attaches the search results held in the session.
func (s *WebServer) handleRecipeDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data := map[string]interface{}{
		"Title":   "Recipe - " + s.config.App.Name,
		"BackURL": "/?from=recipe",
	}

	detail, err := s.spoonacular.RecipeInformation(r.Context(), id)
	if err != nil {
		s.logger.Error("Error fetching recipe details",
			zap.Int("recipe_id", id),
			zap.Error(err),
		)
	} else {
		data["Title"] = detail.Title + " - " + s.config.App.Name
		data["Recipe"] = detail
		data["Instructions"] = s.sanitizer.SafeHTML(detail.Instructions)
	}

	s.renderTemplate(w, "recipe-detail", data)
}

// saveAndRedirect persists the session then redirects
func (s *WebServer) saveAndRedirect(w http.ResponseWriter, r *http.Request, session *Session, url string) {
	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error("Failed to save session", zap.Error(err))
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
