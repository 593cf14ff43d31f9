package engine

import "errors"

// 账本级错误分类。批次内的跳过（已关闭、未到期、余额不够一步）不是错误；
// 下列错误会使整次调用原子性失败，不产生任何状态变化。
var (
	ErrForbidden        = errors.New("engine: caller does not own this order")
	ErrInvalidAmount    = errors.New("engine: deposit below configured minimum")
	ErrInvalidGrids     = errors.New("engine: grid count below configured minimum")
	ErrInvalidTrade     = errors.New("engine: invalid trade amount")
	ErrInvalidFrequency = errors.New("engine: invalid execution frequency")
	ErrOrderNotFound    = errors.New("engine: order not found")
	ErrOrderClosed      = errors.New("engine: order already closed")
)
