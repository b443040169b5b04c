package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/fhir"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "patient").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.LabRoles...))
	readGroup.GET("/patients/schema", h.GetSchema)
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/:id", h.GetPatient)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleLabManager, auth.RoleLabClerk))
	writeGroup.POST("/patients", h.CreatePatient)
	writeGroup.PATCH("/patients/:id", h.UpdatePatient)
	writeGroup.POST("/patients/:id/deactivate", h.DeactivatePatient)
	writeGroup.POST("/patients/:id/activate", h.ActivatePatient)
	writeGroup.DELETE("/patients/:id", h.DeletePatient)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.LabRoles...))
	fhirRead.GET("/Patient", h.SearchPatientsFHIR)
	fhirRead.GET("/Patient/:id", h.GetPatientFHIR)
}

// View is the API representation: the stored fields plus the derived ones.
type View struct {
	*Patient
	Fullname   string `json:"fullname"`
	SexText    string `json:"sex_text"`
	GenderText string `json:"gender_text"`
}

func (h *Handler) view(p *Patient) View {
	r := h.svc.Record(p)
	return View{Patient: p, Fullname: r.Fullname(), SexText: r.SexText(), GenderText: r.GenderText()}
}

// FieldMessage is one entry of a 422 response.
type FieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (h *Handler) GetSchema(c echo.Context) error {
	return c.JSON(http.StatusOK, Describe())
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	crit, err := criteriaFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	crit.Limit, crit.Offset = pg.Limit, pg.Offset

	patients, total, err := h.svc.ListPatients(c.Request().Context(), crit)
	if err != nil {
		return h.fail(c, err)
	}
	views := make([]View, len(patients))
	for i, p := range patients {
		views[i] = h.view(p)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	form, err := bindForm(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), form)
	if err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "create", p)
	c.Response().Header().Set("Location", "/api/v1/patients/"+p.ID.String())
	return c.JSON(http.StatusCreated, h.view(p))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	form, err := bindForm(c)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, form)
	if err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "update", p)
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.DeactivatePatient(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "deactivate", p)
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) ActivatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.ActivatePatient(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "activate", p)
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "delete", &Patient{ID: id})
	return c.NoContent(http.StatusNoContent)
}

// -- FHIR --

func (h *Handler) SearchPatientsFHIR(c echo.Context) error {
	pg := pagination.FromContext(c)
	crit := Criteria{
		MRN:    c.QueryParam("identifier"),
		Name:   c.QueryParam("name"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v := c.QueryParam("active"); v != "" {
		active := v == "true"
		crit.Active = &active
	}
	patients, total, err := h.svc.ListPatients(c.Request().Context(), crit)
	if err != nil {
		h.logger.Error().Err(err).Msg("fhir patient search")
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome("search failed"))
	}
	resources := make([]interface{}, len(patients))
	for i, p := range patients {
		resources[i] = p.ToFHIR()
	}
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, fhir.SearchBundleParams{
		BaseURL: "/fhir/Patient",
		Count:   pg.Limit,
		Offset:  pg.Offset,
		Total:   total,
	}))
}

func (h *Handler) GetPatientFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("fhir patient read")
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome("read failed"))
	}
	return c.JSON(http.StatusOK, p.ToFHIR())
}

// -- helpers --

// bindForm decodes the body as a field name → value object. Numbers are kept
// as json.Number so text fields accept numeric input.
func bindForm(c echo.Context) (map[string]interface{}, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var form map[string]interface{}
	if err := dec.Decode(&form); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	if form == nil {
		form = map[string]interface{}{}
	}
	return form, nil
}

func criteriaFromQuery(c echo.Context) (Criteria, error) {
	crit := Criteria{
		MRN:       strings.TrimSpace(c.QueryParam("mrn")),
		PatientID: strings.TrimSpace(c.QueryParam("patient_id")),
		Name:      strings.TrimSpace(c.QueryParam("name")),
	}
	switch c.QueryParam("active") {
	case "", "all":
	case "true":
		v := true
		crit.Active = &v
	case "false":
		v := false
		crit.Active = &v
	default:
		return crit, errors.New("active must be true, false or all")
	}
	return crit, nil
}

// fail maps domain errors onto HTTP responses.
func (h *Handler) fail(c echo.Context, err error) error {
	var errs Errors
	if errors.As(err, &errs) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": fieldMessages(errs)})
	}
	var ue *UniquenessError
	if errors.As(err, &ue) {
		return c.JSON(http.StatusConflict, map[string]interface{}{"errors": fieldMessages(Errors{ue})})
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": fieldMessages(Errors{fe})})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("patient request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func fieldMessages(errs Errors) []FieldMessage {
	out := make([]FieldMessage, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldMessage{Field: fe.FieldName(), Message: fe.Error()})
	}
	return out
}

func (h *Handler) audit(c echo.Context, action string, p *Patient) {
	ctx := c.Request().Context()
	h.logger.Info().
		Str("user", auth.UserIDFromContext(ctx)).
		Str("tenant", db.TenantFromContext(ctx)).
		Str("patient", p.ID.String()).
		Str("mrn", p.MRN).
		Str("action", action).
		Msg("patient audit")
}
