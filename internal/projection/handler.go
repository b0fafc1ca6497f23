package projection

import (
	"errors"
	"log/slog"
	"net/http"

	httperr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/segments", s.HandleListSegments)
	r.GET("/v1/segments/:segment/members", s.HandleListMembers)
	r.GET("/v1/segments/:segment/users/:user_id", s.HandleGetAssignment)
}

// HandleListSegments handles GET /v1/segments
func (s *Service) HandleListSegments(c *gin.Context) {
	segments := s.Segments()
	resp := SegmentListResponse{Segments: make([]SegmentView, 0, len(segments))}
	for _, seg := range segments {
		resp.Segments = append(resp.Segments, SegmentView{
			Name:      seg.Name,
			EventName: seg.EventName,
			Threshold: seg.Threshold,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListMembers handles GET /v1/segments/:segment/members
func (s *Service) HandleListMembers(c *gin.Context) {
	segment := c.Param("segment")

	members, err := s.ListMembers(c.Request.Context(), segment)
	if err != nil {
		writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, MembersResponse{
		Segment: segment,
		Members: members,
		Count:   len(members),
	})
}

// HandleGetAssignment handles GET /v1/segments/:segment/users/:user_id
func (s *Service) HandleGetAssignment(c *gin.Context) {
	var uri struct {
		Segment string `uri:"segment" binding:"required"`
		UserID  string `uri:"user_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	a, err := s.Current(c.Request.Context(), uri.Segment, uri.UserID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpAssignmentMissingError,
			Message:   "User has no assignment for this segment",
			Details:   gin.H{"segment": uri.Segment, "user_id": uri.UserID},
		})
		return
	}

	c.JSON(http.StatusOK, newAssignmentResponse(a))
}

func writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownSegment):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpSegmentNotFoundError,
			Message:   "Segment not found",
			Details:   c.Param("segment"),
		})
	case httperr.IsTransient(err):
		slog.Warn("[Projection] Assignment store unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailableError,
			Message:   "Assignment store temporarily unavailable",
		})
	default:
		slog.Error("[Projection] Failed to query assignments", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query assignments",
			Details:   err.Error(),
		})
	}
}
