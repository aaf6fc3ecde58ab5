package api

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"abipanel/internal/decoder"
	"abipanel/internal/errors"
	"abipanel/internal/panel"
	"abipanel/internal/store"
	"abipanel/internal/units"
	"abipanel/internal/validation"
	"abipanel/internal/view"
)

// Server 设置面板的 HTTP 服务
type Server struct {
	controller *panel.Controller
	misc       *panel.MiscForm
	decoder    *decoder.InputDecoder
	logger     *logrus.Logger
	logs       *LogBuffer
	server     *http.Server
	port       int
}

// NewServer 创建服务，并把日志接入 /api/v1/logs
func NewServer(controller *panel.Controller, misc *panel.MiscForm, logger *logrus.Logger, port, maxLogs int) *Server {
	logs := NewLogBuffer(maxLogs)
	logger.AddHook(NewLogHook(logs))

	return &Server{
		controller: controller,
		misc:       misc,
		decoder:    decoder.NewInputDecoder(logger),
		logger:     logger,
		logs:       logs,
		port:       port,
	}
}

// Start 启动服务，阻塞直到服务关闭
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	s.logger.Infof("设置面板启动在端口 %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP服务异常退出: %w", err)
	}
	return nil
}

// Stop 优雅关闭服务
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("正在关闭HTTP服务")
	return s.server.Shutdown(ctx)
}

// Handler 构建路由
func (s *Server) Handler() http.Handler {
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
	router.Use(s.requestLogger())
	router.Use(gin.Recovery())

	s.setupRoutes(router)
	return router
}

// requestLogger 用 logrus 记录请求
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.WithFields(logrus.Fields{
			"component": "http",
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
		}).Debug("请求完成")
	}
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)

	// 页面和表单提交
	router.GET("/", s.renderPage)
	form := router.Group("/form")
	{
		form.POST("/abi/load", s.formLoadAbi)
		form.POST("/abi/file", s.formUploadAbi)
		form.POST("/address", s.formSetAddress)
		form.POST("/settings", s.formSaveSettings)
	}

	api := router.Group("/api/v1")
	{
		api.GET("/state", s.getState)

		// ABI
		api.PUT("/abi/url", s.setAbiURL)
		api.POST("/abi/load", s.loadAbi)
		api.POST("/abi/file", s.uploadAbi)
		api.POST("/abi", s.updateAbi)
		api.GET("/abi/summary", s.getAbiSummary)
		api.POST("/abi/decode", s.decodeInput)

		// 合约地址
		api.PUT("/address/editing", s.setEditingAddress)
		api.POST("/address", s.setAddress)

		// 单位和 Gas
		api.GET("/settings", s.getSettings)
		api.PATCH("/settings", s.patchSettings)
		api.GET("/units", s.getUnits)
		api.GET("/units/convert", s.convertUnits)

		// 日志
		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.clearLogs)
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "abipanel",
	})
}

// stateResponse 状态响应
type stateResponse struct {
	panel.State
	Settings      store.UserSettings `json:"settings"`
	CanLoad       bool               `json:"can_load"`
	CanSetAddress bool               `json:"can_set_address"`
}

func (s *Server) currentState() stateResponse {
	state := s.controller.Snapshot()
	return stateResponse{
		State:         state,
		Settings:      s.misc.Settings(),
		CanLoad:       state.CanLoad(),
		CanSetAddress: state.CanSetAddress(),
	}
}

// respondError 按错误类别映射状态码，附带当前状态
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var perr *errors.PanelError
	switch {
	case stderrors.Is(err, panel.ErrSuperseded):
		status = http.StatusConflict
	case stderrors.As(err, &perr):
		switch perr.Kind {
		case errors.KindParse, errors.KindValidation, errors.KindFile:
			status = http.StatusUnprocessableEntity
		case errors.KindNetwork:
			status = http.StatusBadGateway
		}
	}

	body := gin.H{"error": err.Error(), "state": s.currentState()}
	if perr != nil {
		body["error"] = perr
	}
	c.JSON(status, body)
}

// getState 获取完整状态
func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentState())
}

// setAbiURL 更新 URL 输入框
func (s *Server) setAbiURL(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.controller.SetAbiURL(req.URL)
	c.JSON(http.StatusOK, s.currentState())
}

// loadAbi 加载远程 ABI，未指定 url 时使用输入框中的值
func (s *Server) loadAbi(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.URL != "" {
		s.controller.SetAbiURL(req.URL)
	}
	abiURL := s.controller.Snapshot().ABI.SourceURL
	if !panel.CanLoad(abiURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ABI地址为空"})
		return
	}

	if err := s.controller.FetchAbi(c.Request.Context(), abiURL); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.currentState())
}

// uploadAbi 上传本地 ABI 文件
func (s *Server) uploadAbi(c *gin.Context) {
	if err := s.loadUpload(c); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.currentState())
}

func (s *Server) loadUpload(c *gin.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return errors.Wrap(err, errors.KindFile, errors.CodeFileRead, "缺少上传文件")
	}
	file, err := header.Open()
	if err != nil {
		return errors.Wrap(err, errors.KindFile, errors.CodeFileRead, "打开上传文件失败")
	}
	defer file.Close()

	return s.controller.LoadFile(header.Filename, file)
}

// updateAbi 直接提交 ABI 文本
func (s *Server) updateAbi(c *gin.Context) {
	var req struct {
		Text  string `json:"text" binding:"required"`
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.controller.UpdateAbi(req.Text, req.Label); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.currentState())
}

// getAbiSummary ABI 方法、事件和错误签名
func (s *Server) getAbiSummary(c *gin.Context) {
	contract := s.controller.Snapshot().Contract
	if !contract.HasABI() {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未加载ABI"})
		return
	}

	summary, err := validation.DescribeABI(contract.ABI)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// decodeInput 按当前 ABI 解码调用数据
func (s *Server) decodeInput(c *gin.Context) {
	var req struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := s.decoder.DecodeInput(s.controller.Snapshot().Contract.ABI, req.Data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, call)
}

// setEditingAddress 更新地址输入框
func (s *Server) setEditingAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.controller.SetEditingAddress(req.Address)
	c.JSON(http.StatusOK, s.currentState())
}

// setAddress 提交合约地址，未指定时使用输入框中的值
// 不做可用性拦截，无效地址走错误通道
func (s *Server) setAddress(c *gin.Context) {
	var req struct {
		Address *string `json:"address"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	address := s.controller.Snapshot().Address.EditingValue
	if req.Address != nil {
		address = *req.Address
	}

	if err := s.controller.UpdateContractAddress(address); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.currentState())
}

// getSettings 获取单位和 Gas 设置
func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.misc.Settings())
}

// patchSettings 部分更新设置
func (s *Server) patchSettings(c *gin.Context) {
	var req struct {
		Unit     *string `json:"unit"`
		GasLimit *string `json:"gas_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.applySettings(req.Unit, req.GasLimit); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.misc.Settings())
}

func (s *Server) applySettings(unit, gasLimit *string) error {
	if unit != nil {
		if err := s.misc.SetUnit(*unit); err != nil {
			return err
		}
	}
	if gasLimit != nil {
		if err := s.misc.SetGasLimit(*gasLimit); err != nil {
			return err
		}
	}
	return nil
}

// getUnits 单位选项
func (s *Server) getUnits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"units":   s.misc.Options(),
		"current": s.misc.Settings().Unit,
	})
}

// convertUnits 金额换算，unit 缺省时使用当前设置的单位
func (s *Server) convertUnits(c *gin.Context) {
	amount := c.Query("amount")
	if amount == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少amount参数"})
		return
	}

	unit := s.misc.Settings().Unit
	if raw := c.Query("unit"); raw != "" {
		parsed, err := units.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		unit = parsed
	}

	wei, err := units.ToWei(amount, unit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := gin.H{"amount": amount, "unit": unit, "wei": wei.String()}
	for _, opt := range units.Options {
		if converted, err := units.FromWei(wei, opt.Value); err == nil {
			result[string(opt.Value)] = converted
		}
	}
	c.JSON(http.StatusOK, result)
}

// getLogs 获取日志
func (s *Server) getLogs(c *gin.Context) {
	query := LogQuery{
		MinLevel:  c.Query("level"),
		Component: c.Query("component"),
	}
	if p, err := strconv.Atoi(c.Query("page")); err == nil {
		query.Page = p
	}
	if ps, err := strconv.Atoi(c.Query("pageSize")); err == nil {
		query.PageSize = ps
	}

	logs, total, err := s.logs.Query(query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"level": query.MinLevel,
	})
}

// clearLogs 清空日志
func (s *Server) clearLogs(c *gin.Context) {
	s.logs.Clear()

	c.JSON(http.StatusOK, gin.H{
		"message": "日志已清空",
	})
}

// renderPage 渲染设置页面
func (s *Server) renderPage(c *gin.Context) {
	page := view.NewPage(s.controller.Snapshot(), s.misc.Settings())

	var buf bytes.Buffer
	if err := view.RenderHTML(&buf, page); err != nil {
		s.logger.Errorf("渲染页面失败: %v", err)
		c.String(http.StatusInternalServerError, "渲染页面失败")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// redirectToPage 回到页面，地址栏带上最新的查询串
func (s *Server) redirectToPage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/"+s.controller.Snapshot().Location)
}

// 表单提交的错误已记录在控制器状态中，页面会展示
func (s *Server) formLoadAbi(c *gin.Context) {
	abiURL := c.PostForm("abiUrl")
	s.controller.SetAbiURL(abiURL)
	if panel.CanLoad(abiURL) {
		_ = s.controller.FetchAbi(c.Request.Context(), abiURL)
	}
	s.redirectToPage(c)
}

func (s *Server) formUploadAbi(c *gin.Context) {
	if err := s.loadUpload(c); err != nil {
		s.logger.Debugf("上传ABI失败: %v", err)
	}
	s.redirectToPage(c)
}

func (s *Server) formSetAddress(c *gin.Context) {
	address := c.PostForm("address")
	s.controller.SetEditingAddress(address)
	_ = s.controller.UpdateContractAddress(address)
	s.redirectToPage(c)
}

func (s *Server) formSaveSettings(c *gin.Context) {
	unit, hasUnit := c.GetPostForm("unit")
	gasLimit, hasGas := c.GetPostForm("gasLimit")

	var unitPtr, gasPtr *string
	if hasUnit {
		unitPtr = &unit
	}
	if hasGas {
		gasPtr = &gasLimit
	}

	if err := s.applySettings(unitPtr, gasPtr); err != nil {
		s.respondError(c, err)
		return
	}
	s.redirectToPage(c)
}
