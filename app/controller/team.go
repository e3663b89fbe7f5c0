package controller

import (
	"net/http"
	"strconv"

	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type TeamController struct {
	teamService service.TeamService
}

func NewTeamController(teamService service.TeamService) *TeamController {
	return &TeamController{teamService: teamService}
}

func (c *TeamController) FindMember(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "find member")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Find member")
	}

	user, err := c.teamService.FindUser(ctx.Request().Context(), req.Email)
	if err != nil {
		return writeError(ctx, err, "Find member", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, user)
}

func (c *TeamController) List(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	members, err := c.teamService.Members(ctx.Request().Context(), project)
	if err != nil {
		return writeError(ctx, err, "List team", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, members)
}

func (c *TeamController) Add(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewAddMemberRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "add member")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Add member")
	}

	fields := logrus.Fields{"project_id": project.ID, "member_id": req.ID}
	if err = c.teamService.Add(ctx.Request().Context(), project, req.ID); err != nil {
		return writeError(ctx, err, "Add member", fields)
	}

	logrus.WithFields(fields).Info("Team member added")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "user added to the project"})
}

func (c *TeamController) Remove(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	userID, err := strconv.ParseUint(ctx.Param("userId"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: service.ErrUserNotFound.Error()})
	}

	fields := logrus.Fields{"project_id": project.ID, "member_id": userID}
	if err = c.teamService.Remove(ctx.Request().Context(), project, userID); err != nil {
		return writeError(ctx, err, "Remove member", fields)
	}

	logrus.WithFields(fields).Info("Team member removed")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "user removed from the project"})
}
