package cache

// KeySession holds the rider's persisted registration (rider ID plus
// registered bus number).
const KeySession = "session"
