package httpserver

import (
	"errors"

	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/layout"
	apperrors "github.com/pscheid92/portalprefs/internal/platform/errors"
	"github.com/pscheid92/portalprefs/internal/preferences"
)

// classifyError maps domain and service errors onto structured HTTP errors.
// Errors it does not know are returned unchanged.
func classifyError(err error) error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return err
	}

	var initErr *preferences.InitializationError
	var transitionErr *preferences.TransitionError

	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return apperrors.NotFoundError("profile not found")
	case errors.Is(err, domain.ErrStylesheetNotFound):
		return apperrors.NotFoundError("stylesheet not found")
	case errors.Is(err, domain.ErrNodeNotFound):
		return apperrors.NotFoundError("layout node not found")
	case errors.Is(err, layout.ErrDuplicateNode):
		return apperrors.ConflictError("layout node already exists")
	case errors.Is(err, layout.ErrNotFolder), errors.Is(err, layout.ErrRemoveRoot):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, app.ErrUnknownParameter):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, preferences.ErrUnmapped):
		return apperrors.ConflictError("no profile is configured for this client")
	case errors.As(err, &transitionErr):
		return apperrors.ExternalError("preferences update failed", err).WithField("profile", transitionErr.Profile)
	case errors.As(err, &initErr):
		return apperrors.InternalError("failed to load preferences", err)
	default:
		return err
	}
}
