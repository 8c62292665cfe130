package persona

// Store 咨询师角色查询接口
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore 内存角色库，保持种子顺序，按 ID 建索引。
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore 使用给定角色构建存储，重复 ID 以先出现者为准。
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		if _, dup := s.index[item.ID]; dup {
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

// List 返回全部角色的副本
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID 按 ID 查找角色
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[i], true
}

// Resolve 查找 id 对应的角色，找不到时回退到 DefaultID；都不存在返回 nil。
func Resolve(store Store, id string) *Persona {
	if store == nil {
		return nil
	}
	if p, ok := store.FindByID(id); ok {
		return &p
	}
	if p, ok := store.FindByID(DefaultID); ok {
		return &p
	}
	return nil
}
