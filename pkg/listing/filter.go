package listing

// SetFilter installs or replaces a named filter predicate. Filter changes
// bump the generation counter and re-run the current search immediately,
// skipping the debounce, so they feel instantaneous.
func (c *Controller[T]) SetFilter(key string, pred Predicate[T]) {
	c.mu.Lock()
	if c.disposed || pred == nil {
		c.mu.Unlock()
		return
	}
	c.filters[key] = pred
	c.filterGen++
	changed := c.performSearchLocked(c.query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// RemoveFilter drops a named filter. Removing an absent key changes
// nothing and stays silent.
func (c *Controller[T]) RemoveFilter(key string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.filters[key]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.filters, key)
	c.filterGen++
	changed := c.performSearchLocked(c.query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// ClearFilters drops every filter at once. With no filters active it
// changes nothing and stays silent.
func (c *Controller[T]) ClearFilters() {
	c.mu.Lock()
	if c.disposed || len(c.filters) == 0 {
		c.mu.Unlock()
		return
	}
	c.filters = make(map[string]Predicate[T])
	c.filterGen++
	changed := c.performSearchLocked(c.query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// SetSortBy stores the comparator and re-runs the current search. Nil
// restores insertion or result order. The comparator is not part of the
// cache key, so the cache is invalidated instead.
func (c *Controller[T]) SetSortBy(cmp Comparator[T]) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.sortBy = cmp
	c.cache.clear()
	changed := c.performSearchLocked(c.query)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Select adds an item to the selection. Selection is independent of the
// visible list: items hidden by a search or filter stay selected.
func (c *Controller[T]) Select(item T) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.selected[item] = struct{}{}
	c.mu.Unlock()

	c.notify()
}

func (c *Controller[T]) Deselect(item T) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	delete(c.selected, item)
	c.mu.Unlock()

	c.notify()
}

func (c *Controller[T]) ToggleSelection(item T) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.selected[item]; ok {
		delete(c.selected, item)
	} else {
		c.selected[item] = struct{}{}
	}
	c.mu.Unlock()

	c.notify()
}

// SelectAll selects every currently visible item.
func (c *Controller[T]) SelectAll() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	for _, item := range c.visible {
		c.selected[item] = struct{}{}
	}
	c.mu.Unlock()

	c.notify()
}

// DeselectAll clears the whole selection, visible or not.
func (c *Controller[T]) DeselectAll() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.selected = make(map[T]struct{})
	c.mu.Unlock()

	c.notify()
}

// SelectWhere selects the currently visible items the predicate accepts.
func (c *Controller[T]) SelectWhere(pred Predicate[T]) {
	c.mu.Lock()
	if c.disposed || pred == nil {
		c.mu.Unlock()
		return
	}
	for _, item := range c.visible {
		if pred(item) {
			c.selected[item] = struct{}{}
		}
	}
	c.mu.Unlock()

	c.notify()
}

// DeselectWhere deselects the currently visible items the predicate
// accepts.
func (c *Controller[T]) DeselectWhere(pred Predicate[T]) {
	c.mu.Lock()
	if c.disposed || pred == nil {
		c.mu.Unlock()
		return
	}
	for _, item := range c.visible {
		if pred(item) {
			delete(c.selected, item)
		}
	}
	c.mu.Unlock()

	c.notify()
}
