package live_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/live-sdk/response"
)

// -------------------- 直播（Live）相关接口 --------------------

func parseRoomID(ctx *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(ctx.Param("room_id"), 10, 64)
	if err != nil || roomID <= 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "invalid room_id"))
		return 0, false
	}
	return roomID, true
}

// GinHandleListRooms 获取活跃房间列表
// @Summary 活跃房间列表
// @Description 当前进程里有订阅者的房间
// @Tags 直播
// @Produce json
// @Success 200 {object} response.Response{data=[]service.RoomInfo} "房间列表"
// @Security BearerAuth
// @Router /live/rooms [get]
func (e *LiveEngine) GinHandleListRooms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.Success(e.QueryService.ActiveRooms()))
}

// GinHandleRoomStatus 获取房间连接状态
// @Summary 房间状态
// @Description 房间的上游连接状态和订阅者数
// @Tags 直播
// @Produce json
// @Param room_id path int true "房间ID"
// @Success 200 {object} response.Response{data=service.RoomInfo} "房间状态"
// @Failure 400 {object} response.Response "参数错误"
// @Security BearerAuth
// @Router /live/rooms/{room_id}/status [get]
func (e *LiveEngine) GinHandleRoomStatus(ctx *gin.Context) {
	roomID, ok := parseRoomID(ctx)
	if !ok {
		return
	}
	info, err := e.QueryService.RoomStatus(roomID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeRoomNotFound, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(info))
}

// GinHandleRoomStats 获取房间统计
// @Summary 房间统计
// @Description 窗口聚合优先，聚合链路不可用时退化为进程内快照（source 字段区分）
// @Tags 直播
// @Produce json
// @Param room_id path int true "房间ID"
// @Success 200 {object} response.Response{data=service.StatsResult} "统计数据"
// @Failure 400 {object} response.Response "参数错误"
// @Security BearerAuth
// @Router /live/rooms/{room_id}/stats [get]
func (e *LiveEngine) GinHandleRoomStats(ctx *gin.Context) {
	roomID, ok := parseRoomID(ctx)
	if !ok {
		return
	}
	res, err := e.QueryService.GetRoomStats(ctx.Request.Context(), roomID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeRoomNotFound, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(res))
}

// GinHandleRoomHistory 获取房间历史窗口
// @Summary 房间历史统计
// @Description 按窗口的历史聚合记录，最新的在前
// @Tags 直播
// @Produce json
// @Param room_id path int true "房间ID"
// @Param limit query int false "条数上限，默认 100"
// @Success 200 {object} response.Response "历史记录"
// @Failure 400 {object} response.Response "参数错误"
// @Security BearerAuth
// @Router /live/rooms/{room_id}/history [get]
func (e *LiveEngine) GinHandleRoomHistory(ctx *gin.Context) {
	roomID, ok := parseRoomID(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	records, err := e.QueryService.GetHistory(ctx.Request.Context(), roomID, limit)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(records))
}

// GinHandleRanking 获取房间热度排行
// @Summary 热度排行
// @Description 按弹幕总量降序
// @Tags 直播
// @Produce json
// @Param limit query int false "条数上限，默认 10"
// @Success 200 {object} response.Response{data=[]service.RankingItem} "排行榜"
// @Security BearerAuth
// @Router /live/ranking [get]
func (e *LiveEngine) GinHandleRanking(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	items, err := e.QueryService.GetRanking(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(items))
}

// GinHandleWordcloud 获取全局词云
// @Summary 全局词云
// @Description 全部房间最近弹幕的词频 Top-K
// @Tags 直播
// @Produce json
// @Param top query int false "词条上限，默认 50"
// @Success 200 {object} response.Response "词云数据"
// @Security BearerAuth
// @Router /live/wordcloud [get]
func (e *LiveEngine) GinHandleWordcloud(ctx *gin.Context) {
	top, _ := strconv.Atoi(ctx.DefaultQuery("top", "50"))
	res, err := e.QueryService.GetGlobalWordcloud(ctx.Request.Context(), top)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(res))
}

// GinHandleHealth 健康检查
// @Summary 健康检查
// @Description Redis 连通性与活跃房间数
// @Tags 直播
// @Produce json
// @Success 200 {object} response.Response "健康状态"
// @Router /live/health [get]
func (e *LiveEngine) GinHandleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.Success(e.Health(ctx.Request.Context())))
}

// GinHandleWS WebSocket 订阅入口
// @Summary 订阅房间
// @Description 升级为 WebSocket 连接并订阅房间事件流
// @Tags 直播
// @Param room_id path int true "房间ID"
// @Security QueryToken
// @Router /live/ws/{room_id} [get]
func (e *LiveEngine) GinHandleWS(ctx *gin.Context) {
	roomID, ok := parseRoomID(ctx)
	if !ok {
		return
	}
	e.Manager.ServeWS(ctx.Writer, ctx.Request, roomID)
}

// RegisterGinRoutes 一把注册全部接口。
// 也可以不用这个，直接拿 engine 的 service 自己写 controller，更灵活。
func (e *LiveEngine) RegisterGinRoutes(r gin.IRouter) {
	r.GET("/live/rooms", e.GinHandleListRooms)
	r.GET("/live/rooms/:room_id/status", e.GinHandleRoomStatus)
	r.GET("/live/rooms/:room_id/stats", e.GinHandleRoomStats)
	r.GET("/live/rooms/:room_id/history", e.GinHandleRoomHistory)
	r.GET("/live/ranking", e.GinHandleRanking)
	r.GET("/live/wordcloud", e.GinHandleWordcloud)
	r.GET("/live/health", e.GinHandleHealth)
	r.GET("/live/ws/:room_id", e.GinHandleWS)
}
