package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"schoolportal/internal/auth"
	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/portal"
	"schoolportal/internal/state"
)

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

func bindPatch(c *gin.Context) (mapping.Patch, bool) {
	var p mapping.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badBody(c, err)
		return nil, false
	}
	return p, true
}

// failDelete reports a delete that removed the record but not its login.
// The record is gone, so the store is updated before the error is shown.
func (h *Handler) failDelete(c *gin.Context, err error, removed state.Action) {
	var sagaErr *portal.SagaError
	if errors.As(err, &sagaErr) && sagaErr.Completed("delete_record") {
		h.store.Dispatch(c.Request.Context(), removed)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":         sagaErr.Error(),
			"recordDeleted": true,
			"steps":         sagaErr.Report,
		})
		return
	}
	h.fail(c, err)
}

// Students

func (h *Handler) CreateStudent(c *gin.Context) {
	var in portal.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}
	st, err := h.svc.CreateStudent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddStudent{Student: st})
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var in portal.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}
	in.ID = c.Param("id")
	st, err := h.svc.UpdateStudent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateStudent{Student: st})
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id := c.Param("id")
	st := model.Student{ID: id}
	for _, known := range h.store.State().Students {
		if known.ID == id {
			st = known
			break
		}
	}
	action := state.DeleteStudent{ID: id}
	if err := h.svc.DeleteStudent(c.Request.Context(), st); err != nil {
		h.failDelete(c, err, action)
		return
	}
	h.store.Dispatch(c.Request.Context(), action)
	c.Status(http.StatusNoContent)
}

// Teachers

func (h *Handler) CreateTeacher(c *gin.Context) {
	var in portal.TeacherInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}
	t, err := h.svc.CreateTeacher(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddTeacher{Teacher: t})
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTeacher(c *gin.Context) {
	var in portal.TeacherInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}
	in.ID = c.Param("id")
	t, err := h.svc.UpdateTeacher(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateTeacher{Teacher: t})
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTeacher(c *gin.Context) {
	id := c.Param("id")
	t := model.Teacher{ID: id}
	for _, known := range h.store.State().Teachers {
		if known.ID == id {
			t = known
			break
		}
	}
	action := state.DeleteTeacher{ID: id}
	if err := h.svc.DeleteTeacher(c.Request.Context(), t); err != nil {
		h.failDelete(c, err, action)
		return
	}
	h.store.Dispatch(c.Request.Context(), action)
	c.Status(http.StatusNoContent)
}

// Announcements

func (h *Handler) CreateAnnouncement(c *gin.Context) {
	var a model.Announcement
	if err := c.ShouldBindJSON(&a); err != nil {
		badBody(c, err)
		return
	}
	created, err := h.svc.CreateAnnouncement(c.Request.Context(), a)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddAnnouncement{Announcement: created})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateAnnouncement(c *gin.Context) {
	p, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.svc.UpdateAnnouncement(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateAnnouncement{Announcement: updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAnnouncement(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteAnnouncement(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.DeleteAnnouncement{ID: id})
	c.Status(http.StatusNoContent)
}

// Events

func (h *Handler) CreateEvent(c *gin.Context) {
	var e model.SchoolEvent
	if err := c.ShouldBindJSON(&e); err != nil {
		badBody(c, err)
		return
	}
	created, err := h.svc.CreateEvent(c.Request.Context(), e)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddEvent{Event: created})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	p, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.svc.UpdateEvent(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateEvent{Event: updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteEvent(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.DeleteEvent{ID: id})
	c.Status(http.StatusNoContent)
}

// Transport routes

func (h *Handler) CreateRoute(c *gin.Context) {
	var r model.TransportRoute
	if err := c.ShouldBindJSON(&r); err != nil {
		badBody(c, err)
		return
	}
	created, err := h.svc.CreateRoute(c.Request.Context(), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddRoute{Route: created})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateRoute(c *gin.Context) {
	p, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.svc.UpdateRoute(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateRoute{Route: updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteRoute(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteRoute(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.DeleteRoute{ID: id})
	c.Status(http.StatusNoContent)
}

// Exams and results

func (h *Handler) CreateExam(c *gin.Context) {
	var e model.Exam
	if err := c.ShouldBindJSON(&e); err != nil {
		badBody(c, err)
		return
	}
	if claims, ok := auth.FromContext(c); ok && e.CreatedBy == "" {
		e.CreatedBy = claims.Subject
	}
	created, err := h.svc.CreateExam(c.Request.Context(), e)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.AddExam{Exam: created})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateExam(c *gin.Context) {
	p, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.svc.UpdateExam(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.UpdateExam{Exam: updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteExam(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteExam(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.DeleteExam{ID: id})
	c.Status(http.StatusNoContent)
}

func (h *Handler) SaveResults(c *gin.Context) {
	var results []model.Result
	if err := c.ShouldBindJSON(&results); err != nil {
		badBody(c, err)
		return
	}
	saved, err := h.svc.SaveResults(c.Request.Context(), results)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.SaveResults{Results: saved})
	c.JSON(http.StatusOK, saved)
}

// ListResults reads every result from the backend, optionally narrowed to
// one exam.
func (h *Handler) ListResults(c *gin.Context) {
	results, err := h.svc.ListResults(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if exam := c.Query("exam_id"); exam != "" {
		matching := results[:0]
		for _, r := range results {
			if r.ExamID == exam {
				matching = append(matching, r)
			}
		}
		results = matching
	}
	c.JSON(http.StatusOK, results)
}

// Attendance

func (h *Handler) GetAttendance(c *gin.Context) {
	records, err := h.svc.GetAttendance(c.Request.Context(), c.Param("date"), c.QueryArray("student_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// SaveAttendance stores the full list for a date; the store replaces that
// date's list with it.
func (h *Handler) SaveAttendance(c *gin.Context) {
	var records []model.AttendanceRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		badBody(c, err)
		return
	}
	date := c.Param("date")
	saved, err := h.svc.SaveAttendance(c.Request.Context(), date, records)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.SaveAttendance{Date: date, Records: saved})
	c.JSON(http.StatusOK, saved)
}
