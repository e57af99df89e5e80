package wave

import (
	"sync"

	"github.com/google/uuid"
)

// Clock представляет логические часы Лампорта, из которых выделяются новые waves.
// Часы продвигаются каждым wave, прочитанным из storage, поэтому выделенный
// wave всегда больше уже увиденных.
type Clock struct {
	nodeID  string     // уникальный идентификатор писателя
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewClock создает часы с уникальным идентификатором узла (UUID)
func NewClock() *Clock {
	return &Clock{
		nodeID: uuid.New().String(),
	}
}

// NewClockWithNodeID создает часы с заданным идентификатором узла.
// Используется для тестирования или восстановления состояния.
func NewClockWithNodeID(nodeID string) *Clock {
	return &Clock{
		nodeID: nodeID,
	}
}

// Tick увеличивает счетчик и возвращает новый wave
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	return c.counter
}

// Observe продвигает счетчик до увиденного wave, не уменьшая его.
// counter = max(counter, wave)
func (c *Clock) Observe(wave int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wave > c.counter {
		c.counter = wave
	}
	return c.counter
}

// Current возвращает текущее значение счетчика без его изменения
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counter
}

// NodeID возвращает идентификатор узла
func (c *Clock) NodeID() string {
	return c.nodeID
}
