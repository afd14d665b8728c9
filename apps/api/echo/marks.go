package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/marks"
)

type (
	TransitionResponse struct {
		UpdatedCount int `json:"updated_count"`
	}

	// ReadinessRequest asks whether a group is fully at TargetStatus.
	ReadinessRequest struct {
		marks.GroupKey
		TargetStatus string `json:"target_status" query:"target_status" validate:"required,markstatus"`
	}

	DistributionRequest struct {
		ScheduleID string `json:"schedule_id" query:"schedule_id" validate:"required"`
	}

	SplitRequest struct {
		SubjectID string `json:"subject_id" query:"subject_id" validate:"required"`
		SectionID string `json:"section_id" query:"section_id" validate:"required"`
	}
)

func (r *ReadinessRequest) Validate() error    { return core.Validate.Struct(r) }
func (r *DistributionRequest) Validate() error { return core.Validate.Struct(r) }
func (r *SplitRequest) Validate() error        { return core.Validate.Struct(r) }

type marksApi struct {
	svc       marks.Service
	projector marks.Projector
}

func registerMarksAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc marks.Service, projector marks.Projector) {
	api := marksApi{svc: svc, projector: projector}

	mg := g.Group("/marks", jwt)

	mg.POST("/scores", api.upsertScore, roleMiddleware(marks.RoleFaculty))
	mg.POST("/transitions", api.applyTransition, roleMiddleware(marks.RoleFaculty, marks.RoleTutor, marks.RoleAdmin))
	mg.GET("/groups", api.getGroup, roleMiddleware(marks.RoleFaculty, marks.RoleTutor, marks.RoleAdmin))
	mg.GET("/readiness", api.readiness, roleMiddleware(marks.RoleTutor, marks.RoleAdmin))

	rg := mg.Group("/reports")
	rg.GET("/published", api.publishedMarks)
	rg.GET("/distribution", api.scheduleDistribution, roleMiddleware(marks.RoleTutor, marks.RoleAdmin))
	rg.GET("/split", api.subjectSplit)
}

// Handlers

func (api *marksApi) upsertScore(ctx echo.Context) error {
	var data marks.ScoreEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreEntry")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	rec, err := api.svc.UpsertScore(ctx.Request().Context(), data, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *marksApi) applyTransition(ctx echo.Context) error {
	var data marks.TransitionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	n, err := api.svc.Apply(ctx.Request().Context(), data, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TransitionResponse{UpdatedCount: n})
}

func (api *marksApi) getGroup(ctx echo.Context) error {
	var key marks.GroupKey
	if err := ctx.Bind(&key); err != nil {
		return errors.Wrap(err, "binding to GroupKey")
	}
	if err := core.Validate.Struct(&key); err != nil {
		return err
	}

	records, err := api.svc.GetGroup(ctx.Request().Context(), key)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *marksApi) readiness(ctx echo.Context) error {
	var data ReadinessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReadinessRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rep, err := api.svc.Readiness(ctx.Request().Context(), data.GroupKey, marks.Status(data.TargetStatus))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *marksApi) publishedMarks(ctx echo.Context) error {
	var key marks.GroupKey
	if err := ctx.Bind(&key); err != nil {
		return errors.Wrap(err, "binding to GroupKey")
	}
	if err := core.Validate.Struct(&key); err != nil {
		return err
	}

	records, err := api.projector.PublishedMarks(ctx.Request().Context(), key)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *marksApi) scheduleDistribution(ctx echo.Context) error {
	var data DistributionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DistributionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	dists, err := api.projector.ScheduleDistribution(ctx.Request().Context(), data.ScheduleID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dists)
}

func (api *marksApi) subjectSplit(ctx echo.Context) error {
	var data SplitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SplitRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	split, err := api.projector.SubjectSplit(ctx.Request().Context(), data.SubjectID, data.SectionID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, split)
}
