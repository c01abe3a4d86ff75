package controller

import (
	"aerovision_backend/internal/middleware"
	"aerovision_backend/internal/service"
	"aerovision_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MessageController struct {
	MailboxService *service.MailboxService
	Hub            *service.MailboxHub
}

func NewMessageController(mailboxService *service.MailboxService, hub *service.MailboxHub) *MessageController {
	return &MessageController{
		MailboxService: mailboxService,
		Hub:            hub,
	}
}

// SendMessageRequest 学员可省略 to，默认发给管理员
type SendMessageRequest struct {
	To   string `json:"to" binding:"omitempty,email"`
	Text string `json:"text" binding:"max=4000"`
}

// MarkReadRequest 将 from 发给当前用户的消息置为已读
type MarkReadRequest struct {
	From string `json:"from" binding:"omitempty,email"`
}

// GetThread godoc
// @Summary 会话消息
// @Description 学员固定与管理员的会话；管理员需通过 with 指定学员
// @Tags 消息
// @Security ApiKeyAuth
// @Param with query string false "对端邮箱"
// @Success 200 {object} util.Response{data=[]model.Message}
// @Router /api/messages [get]
func (c *MessageController) GetThread(ctx *gin.Context) {
	sess := middleware.GetSession(ctx)
	with, err := c.MailboxService.Counterpart(sess, ctx.Query("with"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	messages, err := c.MailboxService.Thread(ctx.Request.Context(), sess.Email, with)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, messages)
}

// SendMessage godoc
// @Summary 发送消息
// @Description 文本为空时静默忽略，data 为空
// @Tags 消息
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body SendMessageRequest true "消息"
// @Success 200 {object} util.Response{data=model.Message}
// @Router /api/messages [post]
func (c *MessageController) SendMessage(ctx *gin.Context) {
	var req SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sess := middleware.GetSession(ctx)
	to, err := c.MailboxService.Counterpart(sess, req.To)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	msg, err := c.MailboxService.Send(ctx.Request.Context(), sess.Email, to, req.Text)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if msg == nil {
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, msg)
}

// MarkRead godoc
// @Summary 标记已读
// @Description 可重复调用，返回本次实际更新的条数
// @Tags 消息
// @Security ApiKeyAuth
// @Accept json
// @Param body body MarkReadRequest true "发送方"
// @Success 200 {object} util.Response{data=object}
// @Router /api/messages/read [post]
func (c *MessageController) MarkRead(ctx *gin.Context) {
	var req MarkReadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sess := middleware.GetSession(ctx)
	from, err := c.MailboxService.Counterpart(sess, req.From)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	updated, err := c.MailboxService.MarkRead(ctx.Request.Context(), from, sess.Email)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"updated": updated})
}

// UnreadCount godoc
// @Summary 未读消息数
// @Tags 消息
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/messages/unread [get]
func (c *MessageController) UnreadCount(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	count, err := c.MailboxService.UnreadCount(ctx.Request.Context(), claims.Email)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"unreadCount": count})
}

// Conversations godoc
// @Summary 管理员收件箱
// @Description 按未读数、最近消息时间、邮箱排序，并标记学员是否在线
// @Tags 消息
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Conversation}
// @Router /api/admin/conversations [get]
func (c *MessageController) Conversations(ctx *gin.Context) {
	conversations, err := c.MailboxService.Conversations(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	for i := range conversations {
		conversations[i].Online = c.Hub.IsOnline(conversations[i].Email)
	}
	util.Success(ctx, conversations)
}

// Stream godoc
// @Summary 消息事件流 (SSE)
// @Description 推送 message.created / messages.read / unread.sync 事件
// @Tags 消息
// @Param token query string false "访问令牌"
// @Produce text/event-stream
// @Router /api/messages/stream [get]
func (c *MessageController) Stream(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	c.Hub.ServeSSE(ctx.Writer, ctx.Request, claims.Email)
}

// WebSocket godoc
// @Summary 消息事件流 (WebSocket)
// @Tags 消息
// @Param token query string false "访问令牌"
// @Router /api/messages/ws [get]
func (c *MessageController) WebSocket(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	c.Hub.ServeWs(ctx.Writer, ctx.Request, claims.Email)
}
