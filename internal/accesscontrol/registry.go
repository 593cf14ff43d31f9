package accesscontrol

import (
	"errors"
	"sort"

	"sleepswap-engine/internal/models"
)

// ErrUnauthorized 表示调用方没有执行该操作的权限。
var ErrUnauthorized = errors.New("accesscontrol: unauthorized")

// Registry 维护一个策略账本的管理员集合。
// 部署者（owner）默认即管理员，且只有它能增删管理员；
// 管理员身份与订单所有权相互独立。
// 不做自身加锁，并发约束由账本的互斥锁承担。
type Registry struct {
	owner    models.Address
	managers map[models.Address]struct{}
}

// NewRegistry 创建注册表并把 owner 设为初始管理员。
func NewRegistry(owner models.Address) *Registry {
	return &Registry{
		owner:    owner,
		managers: map[models.Address]struct{}{owner: {}},
	}
}

// Owner 返回部署者地址。
func (r *Registry) Owner() models.Address { return r.owner }

// AddManager 由 owner 添加管理员。重复添加是幂等的空操作。
func (r *Registry) AddManager(caller, manager models.Address) error {
	if caller != r.owner {
		return ErrUnauthorized
	}
	r.managers[manager] = struct{}{}
	return nil
}

// RemoveManager 由 owner 移除管理员。移除不存在的管理员是幂等的空操作。
func (r *Registry) RemoveManager(caller, manager models.Address) error {
	if caller != r.owner {
		return ErrUnauthorized
	}
	delete(r.managers, manager)
	return nil
}

// IsManager 判断地址是否为管理员。
func (r *Registry) IsManager(who models.Address) bool {
	_, ok := r.managers[who]
	return ok
}

// Managers 返回排序后的管理员列表，用于快照。
func (r *Registry) Managers() []models.Address {
	out := make([]models.Address, 0, len(r.managers))
	for m := range r.managers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restore 从快照重建注册表。owner 始终保持管理员身份。
func Restore(owner models.Address, managers []models.Address) *Registry {
	r := NewRegistry(owner)
	for _, m := range managers {
		r.managers[m] = struct{}{}
	}
	return r
}
