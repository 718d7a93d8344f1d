package tracker

import "time"

const DefaultInterval = 30 * time.Second

// MinInterval keeps a misconfigured loop from spinning on storage.
const MinInterval = time.Second
