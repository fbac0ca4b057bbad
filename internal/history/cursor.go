package history

// Cursor 调用方持有的历史导航位置，始终位于 [0, n-1]，历史为空时为 -1
type Cursor struct {
	index int
	size  int
}

// NewCursor 创建指向最新一条历史的游标
func NewCursor(size int) *Cursor {
	c := &Cursor{}
	c.Reset(size)
	return c
}

// Reset 历史长度变化后重新定位到最新一条
func (c *Cursor) Reset(size int) {
	if size < 0 {
		size = 0
	}
	c.size = size
	c.index = size - 1
}

// Index 当前位置
func (c *Cursor) Index() int {
	return c.index
}

// Seek 跳转到指定位置，越界时夹到边界
func (c *Cursor) Seek(index int) int {
	if c.size == 0 {
		c.index = -1
		return c.index
	}
	switch {
	case index < 0:
		index = 0
	case index >= c.size:
		index = c.size - 1
	}
	c.index = index
	return c.index
}

func (c *Cursor) Next() int { return c.Seek(c.index + 1) }

func (c *Cursor) Prev() int { return c.Seek(c.index - 1) }

func (c *Cursor) HasNext() bool { return c.index >= 0 && c.index < c.size-1 }

func (c *Cursor) HasPrev() bool { return c.index > 0 }
