package clock

import "iter"

// Keys returns an iterator over the (unordered) keys of resident pages.
func (c *Cache[Key, _]) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		residents := c.Len()
		if residents == 0 {
			return
		}
		for key, page := range c.index {
			if page.Resident {
				if !yield(key) {
					return
				}
				if residents--; residents == 0 {
					return
				}
			}
		}
	}
}
