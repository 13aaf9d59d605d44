package config

// SampleConfig is a commented configuration template emitted by the
// `config sample` command.
const SampleConfig = `# sitevault configuration
#
# Save as sitevault.yaml in the working directory (or pass --config) and
# adjust for your site. Every value can also be supplied through
# SITEVAULT_* environment variables, e.g. SITEVAULT_DATABASE_PASSWORD.

site:
  # Site installation root (the directory holding wp-config.php)
  root_dir: /var/www/example
  # Canonical site URL; autodetected from the options table when empty
  url: https://www.example.com
  name: example

database:
  host: localhost
  port: 3306
  username: wp
  password: ""
  database: wordpress
  table_prefix: wp_
  charset: utf8mb4
  timeout: 30s

backup:
  # Where containers, job state and schedules are written
  output_dir: /var/www/example/wp-content/sitevault-backups
  name_prefix: sitevault
  # Dump compression: none, gzip, lz4, zstd
  compression: zstd
  # Rows fetched per dump batch
  batch_size: 1000
  exclude_tables: []
  file_roots:
    - "."
  exclude_patterns:
    - ".git"
    - "node_modules"
    - "*.log"
    - "wp-content/cache"
  # Skip files larger than this many bytes (0 = no ceiling)
  max_file_size: 0
  # Include WordPress core files in file backups
  include_core: false
  # Close and reopen the archive writer after this many entries
  archive_reopen_every: 500
  # Files added per chunked archive step (0 = single pass)
  files_per_chunk: 0
  # Abort backups whose estimated size exceeds this many bytes (0 = no ceiling)
  max_archive_size: 0
  # Split finished containers into parts of this many bytes (0 = never)
  split_size: 0
  # Chunked upload part size and the size threshold that enables it
  upload_chunk_size: 10485760
  upload_threshold: 10485760

storage:
  # Destinations used when --dest is not given
  destinations:
    - local
  local:
    base_path: /var/www/example/wp-content/sitevault-backups
    permissions: 0700
  s3:
    bucket: ""
    region: us-east-1
    prefix: sitevault
    access_key: ""
    secret_key: ""
  azure:
    account_name: ""
    account_key: ""
    container_name: ""
  gcs:
    bucket: ""
    project_id: ""
    credentials_path: ""

restore:
  # lenient: log failed statements and continue; strict: abort on first failure
  replay_policy: lenient
  # Copy config files next to the live ones instead of overwriting them
  stage_config_files: true

replace:
  batch_size: 1000
  preview_limit: 50

schedule:
  check_interval: 1m

logging:
  # quiet, normal, verbose, debug
  level: normal
  # text or json
  format: text
  file: ""
`
