package version

// Version is the current version of lsblkpro.
// Bump it for every release; snapshot documents record their own schema
// version separately.
const Version = "0.4.0"
