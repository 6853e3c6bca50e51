// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package servermaster

import (
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

const (
	// apiOpVarJobID is the key of job id in HTTP API.
	apiOpVarJobID = "job_id"
)

// HTTPError is the body of a failed open API request.
type HTTPError struct {
	Error string `json:"error_msg"`
	Code  string `json:"error_code"`
}

// NewHTTPError wraps err into HTTPError.
func NewHTTPError(err error) HTTPError {
	code, _ := errors.RFCCode(err)
	return HTTPError{
		Error: err.Error(),
		Code:  string(code),
	}
}

// workerLister lists the live workers.
type workerLister interface {
	WorkerProfiles() []model.WorkerProfile
}

// OpenAPI provides API for servermaster.
type OpenAPI struct {
	jobManager JobManager
	workers    workerLister
}

// NewOpenAPI creates a new OpenAPI.
func NewOpenAPI(jobManager JobManager, workers workerLister) *OpenAPI {
	return &OpenAPI{jobManager: jobManager, workers: workers}
}

// RegisterOpenAPIRoutes registers routes for OpenAPI.
func RegisterOpenAPIRoutes(router *gin.Engine, api *OpenAPI) {
	v1 := router.Group("/api/v1")
	v1.Use(errorHandleMiddleware())

	// job API
	jobGroup := v1.Group("/jobs")
	jobGroup.GET("", api.ListJobs)
	jobGroup.GET("/:job_id", api.QueryJob)
	jobGroup.GET("/:job_id/metrics", api.QueryJobMetrics)
	jobGroup.POST("/:job_id/cancel", api.CancelJob)
	jobGroup.POST("/:job_id/savepoint", api.SavePointJob)

	// worker API
	v1.GET("/workers", api.ListWorkers)
}

// newHTTPHandler builds the HTTP handler of the master: open API, metrics
// and pprof.
func newHTTPHandler(api *OpenAPI) http.Handler {
	router := gin.New()
	// add gin.Recovery() to handle unexpected panic
	router.Use(gin.Recovery())
	RegisterOpenAPIRoutes(router, api)
	router.GET("/metrics", gin.WrapH(promutil.HTTPHandlerForMetric()))
	router.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	router.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	router.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	router.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	router.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	return router
}

// errorHandleMiddleware renders the error a handler attached to the context.
func errorHandleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		// handlers return right after an error, so there is at most one
		lastError := c.Errors.Last()
		if lastError == nil {
			return
		}
		err := lastError.Err
		c.IndentedJSON(httpStatusOf(err), NewHTTPError(err))
		c.Abort()
	}
}

func httpStatusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrJobNotRunning):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseJobID(c *gin.Context) (model.JobID, bool) {
	raw := c.Param(apiOpVarJobID)
	jobID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_ = c.Error(errors.WrapError(errors.ErrInvalidArgument, err, "job id "+raw))
		return 0, false
	}
	return jobID, true
}

// ListJobs lists all jobs in servermaster.
// @Summary List jobs
// @Description lists all jobs in servermaster
// @Tags jobs
// @Produce json
// @Success 200
// @Router /api/v1/jobs [get]
func (o *OpenAPI) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, o.jobManager.ListJobStatus())
}

// QueryJob queries a detail information of a job.
// @Summary Query a job
// @Description query a detail information of a job
// @Tags jobs
// @Produce json
// @Param job_id  path  string  true  "job id"
// @Success 200
// @Failure 400,404
// @Router /api/v1/jobs/{job_id} [get]
func (o *OpenAPI) QueryJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	detail, err := o.jobManager.GetJobDetailStatus(jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// QueryJobMetrics returns the raw metrics of a job.
// @Summary Query the metrics of a job
// @Tags jobs
// @Produce json
// @Param job_id  path  string  true  "job id"
// @Success 200
// @Failure 400,404
// @Router /api/v1/jobs/{job_id}/metrics [get]
func (o *OpenAPI) QueryJobMetrics(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	raw, err := o.jobManager.GetJobMetrics(jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", json.RawMessage(raw))
}

// CancelJob cancels a job.
// @Summary Cancel a job
// @Description cancel a job
// @Tags jobs
// @Produce json
// @Param job_id  path  string  true  "job id"
// @Success 202
// @Failure 400,404,409
// @Router /api/v1/jobs/{job_id}/cancel [post]
func (o *OpenAPI) CancelJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	if err := o.jobManager.CancelJob(c.Request.Context(), jobID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}

// SavePointJob stops a job with a savepoint.
// @Summary Savepoint a job
// @Tags jobs
// @Produce json
// @Param job_id  path  string  true  "job id"
// @Success 202
// @Failure 400,404,409
// @Router /api/v1/jobs/{job_id}/savepoint [post]
func (o *OpenAPI) SavePointJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	if err := o.jobManager.SavePointJob(c.Request.Context(), jobID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}

// ListWorkers lists the live workers.
// @Summary List workers
// @Tags workers
// @Produce json
// @Success 200
// @Router /api/v1/workers [get]
func (o *OpenAPI) ListWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, o.workers.WorkerProfiles())
}
