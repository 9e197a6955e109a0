package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusauth/internal/academic"
	"campusauth/internal/auth"
)

type addGradesRequest struct {
	StudentID  string `json:"studentId" binding:"required"`
	SemesterID string `json:"semesterId" binding:"required"`
	Grades     []struct {
		SubjectID string `json:"subjectId" binding:"required"`
		Grade     string `json:"grade" binding:"required"`
	} `json:"grades" binding:"required,dive"`
}

type addAttendanceRequest struct {
	SubjectID string `json:"subjectId" binding:"required"`
	Records   []struct {
		StudentID  string `json:"studentId" binding:"required"`
		SemesterID string `json:"semesterId"`
		Attended   int    `json:"attended" binding:"gte=0"`
		Total      int    `json:"total" binding:"gte=0,gtefield=Attended"`
	} `json:"records" binding:"required,dive"`
}

func (h *handler) grades(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "AUTH_UNAUTHORIZED", "Missing bearer token")
		return
	}
	grades, err := h.deps.Academic.Grades(c.Request.Context(), claims.Username)
	if err != nil {
		fail(c, err, "Failed to load grades")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "grades": grades})
}

func (h *handler) attendance(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "AUTH_UNAUTHORIZED", "Missing bearer token")
		return
	}
	records, err := h.deps.Academic.Attendance(c.Request.Context(), claims.Username)
	if err != nil {
		fail(c, err, "Failed to load attendance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": records})
}

func (h *handler) subjects(c *gin.Context) {
	subjects, err := h.deps.Academic.Subjects(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to load subjects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subjects": subjects})
}

func (h *handler) addGrades(c *gin.Context) {
	var req addGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := make([]academic.GradeInput, 0, len(req.Grades))
	for _, g := range req.Grades {
		in = append(in, academic.GradeInput{SubjectID: g.SubjectID, Grade: g.Grade})
	}
	n, err := h.deps.Academic.AddGrades(c.Request.Context(), req.StudentID, req.SemesterID, in)
	if err != nil {
		fail(c, err, "Failed to save grades")
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordsWritten.WithLabelValues("grade").Add(float64(n))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *handler) addAttendance(c *gin.Context) {
	var req addAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := make([]academic.AttendanceInput, 0, len(req.Records))
	for _, r := range req.Records {
		in = append(in, academic.AttendanceInput{
			StudentID:  r.StudentID,
			SemesterID: r.SemesterID,
			Attended:   r.Attended,
			Total:      r.Total,
		})
	}
	n, err := h.deps.Academic.AddAttendance(c.Request.Context(), req.SubjectID, in)
	if err != nil {
		fail(c, err, "Failed to save attendance")
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordsWritten.WithLabelValues("attendance").Add(float64(n))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}
